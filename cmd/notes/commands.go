package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/tenantnotes/notes-client/internal/app"
	"github.com/tenantnotes/notes-client/internal/domain"
	clienterrors "github.com/tenantnotes/notes-client/internal/errors"
)

var errUsage = errors.New("usage")

type command struct {
	name    string
	args    string
	summary string
	// signedIn commands restore the session first and fail without one.
	signedIn bool
	run      func(c *cli, ctx context.Context, args []string) error
}

var commands = []command{
	{"login", "<email> <password>", "sign in and remember the session", false, (*cli).login},
	{"logout", "", "forget the session", false, (*cli).logout},
	{"whoami", "", "show the signed-in user and what they may do", true, (*cli).whoami},
	{"status", "", "show the user, the first page of notes and the stats", false, (*cli).status},
	{"list", "[-q search] [-page n]", "list notes", true, (*cli).list},
	{"create", "-title t -content c [-tags a,b]", "create a note", true, (*cli).create},
	{"edit", "<id> -title t -content c [-tags a,b]", "replace a note's title, content and tags", true, (*cli).edit},
	{"delete", "<id>", "delete a note", true, (*cli).deleteNote},
	{"stats", "", "show tenant note statistics and plan", true, (*cli).stats},
	{"invite", "<email> [admin|member]", "invite a user to the tenant (admin)", true, (*cli).invite},
	{"upgrade", "", "upgrade the tenant to the pro plan (admin)", true, (*cli).upgrade},
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: notes [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, cmd := range commands {
		fmt.Fprintf(tw, "  %s %s\t%s\n", cmd.name, cmd.args, cmd.summary)
	}
	tw.Flush()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags: -api-url, -api-timeout, -read-retries, -api-rps, -api-burst, -page-limit,")
	fmt.Fprintln(w, "       -session-backend, -session-path, -env, -log-level, -env-file")
}

// describe renders an error for the terminal, with a remedy where one exists.
func describe(err error) string {
	msg := clienterrors.UserMessage(err)
	switch clienterrors.CodeOf(err) {
	case clienterrors.CodeQuota:
		return msg + "\nAn admin can lift the limit with: notes upgrade"
	case clienterrors.CodeAuthentication:
		return msg + "\nSign in with: notes login <email> <password>"
	case clienterrors.CodeTransport:
		return msg + "\nThe request can be retried."
	default:
		return msg
	}
}

type cli struct {
	app *app.App
	out io.Writer
}

func newCLI(a *app.App, out io.Writer) *cli {
	return &cli{app: a, out: out}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		if cmd.signedIn {
			if err := c.requireSession(ctx); err != nil {
				return err
			}
		}
		return cmd.run(c, ctx, args[1:])
	}
	return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
}

func (c *cli) requireSession(ctx context.Context) error {
	if _, err := c.app.Session.Restore(ctx); err != nil {
		return err
	}
	if !c.app.Session.Snapshot().Authenticated() {
		return clienterrors.Authentication("You are not signed in.")
	}
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	identity, err := c.app.Session.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Signed in as %s (%s) in %s.\n", identity.Email, identity.Role, identity.Tenant.Name)
	return nil
}

func (c *cli) logout(ctx context.Context, _ []string) error {
	// Restoring first keeps a stale token from being left behind.
	_, _ = c.app.Session.Restore(ctx)
	c.app.Session.Logout()
	fmt.Fprintln(c.out, "Signed out.")
	return nil
}

func (c *cli) whoami(_ context.Context, _ []string) error {
	snap := c.app.Session.Snapshot()
	id := snap.Identity
	sub := id.Tenant.Subscription

	fmt.Fprintf(c.out, "%s (%s)\n", id.Email, id.Role)
	fmt.Fprintf(c.out, "Tenant: %s [%s]\n", id.Tenant.Name, id.Tenant.Slug)
	fmt.Fprintf(c.out, "Plan:   %s, note limit %s\n", sub.Plan, sub.LimitLabel())
	if snap.Permissions.AdminSurface {
		fmt.Fprintln(c.out, "Admin:  invite users")
		if snap.Permissions.Upgrade {
			fmt.Fprintln(c.out, "        upgrade to pro")
		}
	}
	return nil
}

func (c *cli) status(ctx context.Context, _ []string) error {
	identity, err := c.app.Start(ctx)
	if err != nil {
		return err
	}
	if identity == nil {
		fmt.Fprintln(c.out, "Not signed in.")
		return nil
	}
	if err := c.whoami(ctx, nil); err != nil {
		return err
	}
	fmt.Fprintln(c.out)
	c.printStats()
	fmt.Fprintln(c.out)
	c.printNotes()
	return nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	search := fs.String("q", "", "search title, content and tags")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if _, err := c.app.Notes.Load(ctx, *search, *page); err != nil {
		return err
	}
	c.printNotes()
	return nil
}

// noteFlags parses -title, -content and -tags.
func noteFlags(name string, args []string) (domain.NoteFields, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	title := fs.String("title", "", "note title")
	content := fs.String("content", "", "note content")
	tags := fs.String("tags", "", "comma separated tags")
	if err := fs.Parse(args); err != nil || fs.NArg() > 0 {
		return domain.NoteFields{}, errUsage
	}

	fields := domain.NoteFields{Title: *title, Content: *content, Tags: []string{}}
	// "a, b" lists two tags; the space belongs to the separator.
	for tag := range strings.SplitSeq(*tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			fields.Tags = append(fields.Tags, tag)
		}
	}
	return fields, nil
}

func (c *cli) create(ctx context.Context, args []string) error {
	fields, err := noteFlags("create", args)
	if err != nil {
		return err
	}
	note, err := c.app.Notes.Create(ctx, fields)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created note %s.\n", note.ID)
	c.printQuota()
	return nil
}

func (c *cli) edit(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	fields, err := noteFlags("edit", args[1:])
	if err != nil {
		return err
	}
	note, err := c.app.Notes.Update(ctx, args[0], fields)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated note %s: %s\n", note.ID, note.Title)
	return nil
}

func (c *cli) deleteNote(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := c.app.Notes.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted note %s.\n", args[0])
	c.printQuota()
	return nil
}

func (c *cli) stats(ctx context.Context, _ []string) error {
	if _, err := c.app.Notes.RefreshStats(ctx); err != nil {
		return err
	}
	c.printStats()
	return nil
}

func (c *cli) invite(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	var role domain.Role
	if len(args) == 2 {
		role = domain.Role(args[1])
	}
	notice, err := c.app.Admin.Invite(ctx, args[0], role)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Invited %s as %s.\n", notice.Email, notice.Role)
	if notice.DefaultPassword != "" {
		fmt.Fprintf(c.out, "Default password: %s\n", notice.DefaultPassword)
		fmt.Fprintln(c.out, "It is shown only once. Ask the user to change it after signing in.")
	}
	return nil
}

func (c *cli) upgrade(ctx context.Context, _ []string) error {
	identity, err := c.app.Admin.Upgrade(ctx)
	if identity != nil {
		fmt.Fprintf(c.out, "%s is now on the %s plan.\n", identity.Tenant.Name, identity.Tenant.Subscription.Plan)
	}
	return err
}

func (c *cli) printNotes() {
	view := c.app.Notes.View()
	if len(view.Notes) == 0 {
		if view.Search != "" {
			fmt.Fprintf(c.out, "No notes match %q.\n", view.Search)
		} else {
			fmt.Fprintln(c.out, "No notes yet.")
		}
		return
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTAGS\tAUTHOR\tCREATED")
	for _, n := range view.Notes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.Title, strings.Join(n.Tags, ","), n.Author.Email, n.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()

	p := view.Pagination
	fmt.Fprintf(c.out, "Page %d of %d, %d notes.\n", p.Page, max(p.Pages, 1), p.Total)
}

func (c *cli) printStats() {
	view := c.app.Notes.View()
	stats := view.Stats
	if stats == nil {
		fmt.Fprintln(c.out, "Stats unavailable.")
		return
	}

	fmt.Fprintf(c.out, "Notes:  %d total, %d in the last 7 days\n", stats.TotalNotes, stats.RecentNotes)
	fmt.Fprintf(c.out, "Plan:   %s, note limit %s\n", stats.Subscription.Plan, view.Permissions.NoteLimit)
	if len(stats.NotesByUser) > 0 {
		tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "AUTHOR\tNOTES")
		for _, row := range stats.NotesByUser {
			fmt.Fprintf(tw, "%s\t%d\n", row.Author, row.Count)
		}
		tw.Flush()
	}
	c.printQuota()
}

func (c *cli) printQuota() {
	perms := c.app.Notes.View().Permissions
	switch {
	case perms.ShowUpgradePrompt:
		fmt.Fprintln(c.out, "The free plan limit is reached. Run `notes upgrade` for unlimited notes.")
	case !perms.CreateNote:
		fmt.Fprintln(c.out, "The free plan limit is reached. Ask an admin to upgrade.")
	}
}
