package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/userapi"
)

func runUsers(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.errOut, "usage: portalctl users list|get|update|role|delete [flags]")
		return errUsage
	}
	switch args[0] {
	case "list":
		return usersList(ctx, a, args[1:])
	case "get":
		return usersGet(ctx, a, args[1:])
	case "update":
		return usersUpdate(ctx, a, args[1:])
	case "role":
		return usersRole(ctx, a, args[1:])
	case "delete":
		return usersDelete(ctx, a, args[1:])
	default:
		fmt.Fprintf(a.errOut, "users: unknown subcommand %q\n", args[0])
		return errUsage
	}
}

func usersList(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "users list")
	var q userapi.Query
	fs.StringVar(&q.Search, "search", "", "match name or email")
	fs.StringVar(&q.Role, "role", "", "Student, Lecturer, Admin or all")
	fs.StringVar(&q.Status, "status", "", "Online, Away, Offline or all")
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", userapi.DefaultPageSize, "page size")
	asJSON := fs.Bool("json", false, "print the page as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	users, err := a.client.Users().List(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	p := userapi.Paginate(userapi.Filter(users, q, now), *page, *size)
	if *asJSON {
		return printJSON(a, p)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tSTATUS")
	for _, u := range p.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.UserID, u.FullName, u.Email, u.Role, userapi.StatusOf(u, now))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "page %d/%d, %d accounts\n", p.Page, p.TotalPages, p.Total)
	return nil
}

func usersGet(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "users get")
	id := fs.String("id", "", "account id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id"); err != nil {
		return err
	}
	u, err := a.client.Users().Get(ctx, *id)
	if err != nil {
		return err
	}
	return printJSON(a, u)
}

func usersUpdate(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "users update")
	id := fs.String("id", "", "account id")
	var in userapi.UpdateInput
	fs.StringVar(&in.FullName, "name", "", "new full name")
	fs.StringVar(&in.Email, "email", "", "new email")
	fs.StringVar(&in.StudentCode, "code", "", "new student code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id"); err != nil {
		return err
	}
	if err := a.client.Users().Update(ctx, *id, in); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "account updated")
	return nil
}

func usersRole(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "users role")
	id := fs.String("id", "", "account id")
	role := fs.String("role", "", "Student, Lecturer or Admin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id", "role"); err != nil {
		return err
	}
	if err := a.client.Users().UpdateRole(ctx, *id, session.ParseRole(*role)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "role updated")
	return nil
}

func usersDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "users delete")
	id := fs.String("id", "", "account id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id"); err != nil {
		return err
	}
	if err := a.client.Users().Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "account deleted")
	return nil
}
