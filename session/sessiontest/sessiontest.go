// Package sessiontest holds a conformance suite every session.Backend must
// pass, exercised through session.Store.
package sessiontest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/goPortal/session"
)

// BackendFactory returns a fresh, empty backend.
type BackendFactory func(t *testing.T) session.Backend

// RunBackendTests runs the full suite against factory.
func RunBackendTests(t *testing.T, factory BackendFactory) {
	t.Run("Backend_GetMissingReturnsNotFound", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("Backend_DeleteIsIdempotent", func(t *testing.T) { testDeleteIdempotent(t, factory) })
	t.Run("Store_SaveLoadRoundTrip", func(t *testing.T) { testSaveLoad(t, factory) })
	t.Run("Store_LoadMalformedIsGuest", func(t *testing.T) { testLoadMalformed(t, factory) })
	t.Run("Store_ClearRemovesSession", func(t *testing.T) { testClear(t, factory) })
	t.Run("Store_PatchAccessTokenOnlyChangesToken", func(t *testing.T) { testPatch(t, factory) })
	t.Run("Store_PatchWithoutSessionFails", func(t *testing.T) { testPatchNoSession(t, factory) })
	t.Run("Store_PatchRejectsOtherSignIn", func(t *testing.T) { testPatchOtherSignIn(t, factory) })
	t.Run("Store_ClearIfOnlyRemovesOwner", func(t *testing.T) { testClearIf(t, factory) })
	t.Run("Store_ConcurrentReadersNeverSeeTornRecord", func(t *testing.T) { testConcurrentReaders(t, factory) })
}

// Sample returns a fully populated student session.
func Sample() *session.Session {
	return &session.Session{
		UserID:       "u-1",
		FullName:     "Nguyen Van A",
		Email:        "a@fpt.edu.vn",
		Role:         session.RoleStudent,
		StudentCode:  "SE123456",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Phone:        "0900000000",
	}
}

func testGetMissing(t *testing.T, factory BackendFactory) {
	b := factory(t)
	_, err := b.Get(context.Background())
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testDeleteIdempotent(t *testing.T, factory BackendFactory) {
	b := factory(t)
	ctx := context.Background()
	if err := b.Put(ctx, []byte(`{}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.Delete(ctx); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := b.Delete(ctx); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := b.Get(ctx); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func testSaveLoad(t *testing.T, factory BackendFactory) {
	store := session.NewStore(factory(t))
	ctx := context.Background()
	want := Sample()

	if got := store.Load(ctx); got != nil {
		t.Fatalf("expected guest on empty backend, got %+v", got)
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got := store.Load(ctx)
	if got == nil {
		t.Fatal("expected session after save")
	}
	if *got != *want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func testLoadMalformed(t *testing.T, factory BackendFactory) {
	b := factory(t)
	ctx := context.Background()
	store := session.NewStore(b)

	for _, raw := range []string{`not json`, `{"v":99,"token":"x"}`, `{"userId":"u-1"}`} {
		if err := b.Put(ctx, []byte(raw)); err != nil {
			t.Fatalf("put %q: %v", raw, err)
		}
		if got := store.Load(ctx); got != nil {
			t.Fatalf("expected guest for %q, got %+v", raw, got)
		}
	}
}

func testClear(t *testing.T, factory BackendFactory) {
	store := session.NewStore(factory(t))
	ctx := context.Background()
	if err := store.Save(ctx, Sample()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if got := store.Load(ctx); got != nil {
		t.Fatalf("expected guest after clear, got %+v", got)
	}
}

func testPatch(t *testing.T, factory BackendFactory) {
	store := session.NewStore(factory(t))
	ctx := context.Background()
	orig := Sample()
	if err := store.Save(ctx, orig); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.PatchAccessToken(ctx, orig, "access-2"); err != nil {
		t.Fatalf("patch: %v", err)
	}

	got := store.Load(ctx)
	want := orig.Clone()
	want.AccessToken = "access-2"
	if got == nil || *got != *want {
		t.Fatalf("patch mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func testPatchNoSession(t *testing.T, factory BackendFactory) {
	store := session.NewStore(factory(t))
	err := store.PatchAccessToken(context.Background(), Sample(), "access-2")
	if !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

// other returns a different sign-in than Sample: an admin with its own tokens.
func other() *session.Session {
	return &session.Session{
		UserID:       "u-2",
		FullName:     "Tran Thi B",
		Email:        "b@fpt.edu.vn",
		Role:         session.RoleAdmin,
		AccessToken:  "access-B",
		RefreshToken: "refresh-B",
	}
}

func testPatchOtherSignIn(t *testing.T, factory BackendFactory) {
	store := session.NewStore(factory(t))
	ctx := context.Background()
	if err := store.Save(ctx, other()); err != nil {
		t.Fatalf("save: %v", err)
	}

	err := store.PatchAccessToken(ctx, Sample(), "access-2")
	if !errors.Is(err, session.ErrSessionReplaced) {
		t.Fatalf("expected ErrSessionReplaced, got %v", err)
	}
	if got := store.Load(ctx); got == nil || *got != *other() {
		t.Fatalf("other sign-in modified: %+v", got)
	}

	// A re-login of the same user carries a new refresh token.
	relogin := Sample()
	relogin.RefreshToken = "refresh-9"
	if err := store.Save(ctx, relogin); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.PatchAccessToken(ctx, Sample(), "access-2"); !errors.Is(err, session.ErrSessionReplaced) {
		t.Fatalf("expected ErrSessionReplaced for re-login, got %v", err)
	}
}

func testClearIf(t *testing.T, factory BackendFactory) {
	store := session.NewStore(factory(t))
	ctx := context.Background()

	if cleared, err := store.ClearIf(ctx, Sample()); err != nil || cleared {
		t.Fatalf("ClearIf on empty store = %v, %v", cleared, err)
	}

	if err := store.Save(ctx, other()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if cleared, err := store.ClearIf(ctx, Sample()); err != nil || cleared {
		t.Fatalf("ClearIf removed another sign-in: %v, %v", cleared, err)
	}
	if store.Load(ctx) == nil {
		t.Fatal("other sign-in removed")
	}

	rotated := other()
	rotated.AccessToken = "access-B2"
	if err := store.Save(ctx, rotated); err != nil {
		t.Fatalf("save: %v", err)
	}
	if cleared, err := store.ClearIf(ctx, other()); err != nil || !cleared {
		t.Fatalf("ClearIf on owner after token rotation = %v, %v", cleared, err)
	}
	if store.Load(ctx) != nil {
		t.Fatal("owner session not removed")
	}
}

func testConcurrentReaders(t *testing.T, factory BackendFactory) {
	store := session.NewStore(factory(t))
	ctx := context.Background()
	if err := store.Save(ctx, Sample()); err != nil {
		t.Fatalf("save: %v", err)
	}

	const writers = 4
	const readers = 8
	const rounds = 50

	var wg sync.WaitGroup
	errs := make(chan string, readers*rounds)

	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				_ = store.PatchAccessToken(ctx, nil, "access-rotated")
			}
		}()
	}

	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				got := store.Load(ctx)
				if got == nil {
					errs <- "session vanished during patch"
					continue
				}
				if got.RefreshToken != "refresh-1" || got.UserID != "u-1" {
					errs <- "non-token field changed during patch"
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Fatal(msg)
	}
}
