package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/civictrack/internal/config"
	"github.com/and161185/civictrack/internal/errs"
	"github.com/and161185/civictrack/internal/gateway"
	"github.com/and161185/civictrack/internal/kvstore"
	"github.com/and161185/civictrack/internal/model"
	"github.com/and161185/civictrack/internal/requests"
	"github.com/and161185/civictrack/internal/session"
	"github.com/and161185/civictrack/internal/tracker"
)

// app wires the client components for one invocation.
type app struct {
	log   *zap.Logger
	in    io.Reader
	out   io.Writer
	gw    *gateway.Client
	sess  *session.Manager
	board *tracker.Board
	reqs  *requests.Service
	accts *requests.Accounts
}

func newApp(cfg *config.Config, st kvstore.Store, log *zap.Logger, in io.Reader, out io.Writer) *app {
	a := &app{log: log, in: in, out: out}
	a.gw = gateway.New(cfg.APIBaseURL, func() string { return a.sess.Token() }, log.Named("gateway"),
		gateway.WithTimeout(cfg.HTTPTimeout))
	a.sess = session.NewManager(a.gw, st, log.Named("session"))
	a.board = tracker.NewBoard(tracker.New(a.gw, log.Named("tracker")))
	a.reqs = requests.NewService(a.gw, a.sess, log.Named("requests"))
	a.accts = requests.NewAccounts(a.gw)
	return a
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		a.sess.Logout(ctx)
		fmt.Fprintln(a.out, "signed out")
		return nil
	case "whoami":
		return a.whoami()
	case "passwd":
		return a.passwd(ctx, args)
	case "submit":
		return a.submit(ctx, args)
	case "list":
		return a.list(ctx, a.reqs.ListAll)
	case "mine":
		return a.list(ctx, a.reqs.ListMine)
	case "advance":
		return a.advance(ctx, args)
	case "progress":
		return a.progress(ctx, args)
	case "rm":
		return a.remove(ctx, args)
	}
	return errUsage
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %w", errs.ErrValidation, fs.Name(), err)
	}
	return nil
}

func need(vals map[string]string) error {
	var missing []string
	for name, v := range vals {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: need %s", errs.ErrValidation, strings.Join(missing, " "))
	}
	return nil
}

// readSecret returns v, or the first line of stdin when v is "-".
func (a *app) readSecret(v string) (string, error) {
	if v != "-" {
		return v, nil
	}
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := newFlags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email")
	pw := fs.String("password", "", "password")
	doc := fs.String("document", "", "identity document (enables passwd)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(map[string]string{"name": *name, "email": *email, "password": *pw}); err != nil {
		return err
	}
	secret, err := a.readSecret(*pw)
	if err != nil {
		return err
	}
	u, err := a.accts.Register(ctx, *name, *email, secret, *doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered %s (%s)\n", u.Email, u.ID)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "email")
	pw := fs.String("password", "", "password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(map[string]string{"email": *email, "password": *pw}); err != nil {
		return err
	}
	secret, err := a.readSecret(*pw)
	if err != nil {
		return err
	}
	s, err := a.sess.Login(ctx, strings.TrimSpace(*email), secret)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s\n", display(s.User))
	return nil
}

func display(u model.User) string {
	if u.Name != "" {
		return fmt.Sprintf("%s <%s>", u.Name, u.Email)
	}
	return u.Email
}

func (a *app) whoami() error {
	s, ok := a.sess.Session()
	if !ok {
		return errs.ErrNotAuthenticated
	}
	fmt.Fprintf(a.out, "%s\nid: %s\n", display(s.User), s.User.ID)
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, "expires: %s\n", s.ExpiresAt.Local().Format(time.RFC3339))
	}
	return nil
}

func (a *app) passwd(ctx context.Context, args []string) error {
	fs := newFlags("passwd")
	email := fs.String("email", "", "email")
	doc := fs.String("document", "", "identity document")
	pw := fs.String("new", "", "new password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(map[string]string{"email": *email, "document": *doc, "new": *pw}); err != nil {
		return err
	}
	secret, err := a.readSecret(*pw)
	if err != nil {
		return err
	}
	msg, err := a.accts.ChangePassword(ctx, *email, *doc, secret)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "password changed"
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := newFlags("submit")
	var d model.Draft
	fs.StringVar(&d.Category, "category", "", "Mantenimiento | Reparación | Denuncia")
	fs.StringVar(&d.Description, "description", "", "what happened")
	fs.StringVar(&d.Phone, "phone", "", "contact phone")
	fs.StringVar(&d.Department, "department", "", "department (default "+model.DefaultDepartment+")")
	fs.StringVar(&d.City, "city", "", "city")
	fs.StringVar(&d.Neighborhood, "neighborhood", "", "neighborhood")
	fs.StringVar(&d.Address, "address", "", "street address")
	fs.StringVar(&d.ImagePath, "image", "", "photo to attach")
	if err := parse(fs, args); err != nil {
		return err
	}
	r, err := a.reqs.Submit(ctx, d)
	if err != nil {
		return err
	}
	return printJSON(a.out, toRow(r))
}

// row is the printed form of a request.
type row struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Progress  string `json:"progress"`
	Category  string `json:"category"`
	City      string `json:"city,omitempty"`
	Address   string `json:"address,omitempty"`
	Submitter string `json:"submitter,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toRow(r model.Request) row {
	out := row{
		ID:        r.ID,
		Status:    r.Status.String(),
		Progress:  fmt.Sprintf("%.0f%%", tracker.ProgressFraction(r.Status)*100),
		Category:  r.Category,
		City:      r.City,
		Address:   r.Address,
		Submitter: r.SubmitterID,
	}
	if !r.CreatedAt.IsZero() {
		out.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (a *app) list(ctx context.Context, fetch tracker.FetchFunc) error {
	if err := a.board.Refresh(ctx, fetch); err != nil {
		return err
	}
	rows := []row{}
	for _, r := range a.board.List() {
		rows = append(rows, toRow(r))
	}
	return printJSON(a.out, rows)
}

func (a *app) idFlag(name string, args []string) (string, error) {
	fs := newFlags(name)
	id := fs.String("id", "", "request id")
	if err := parse(fs, args); err != nil {
		return "", err
	}
	if err := need(map[string]string{"id": *id}); err != nil {
		return "", err
	}
	return strings.TrimSpace(*id), nil
}

func (a *app) advance(ctx context.Context, args []string) error {
	id, err := a.idFlag("advance", args)
	if err != nil {
		return err
	}
	if err := a.board.Refresh(ctx, a.reqs.ListAll); err != nil {
		return err
	}
	before, ok := a.board.Get(id)
	if !ok {
		return fmt.Errorf("%w: request %s", errs.ErrNotFound, id)
	}
	after, err := a.board.Advance(ctx, id)
	if err != nil {
		return err
	}
	if after.Status == before.Status {
		fmt.Fprintf(a.out, "%s is already %s\n", id, after.Status)
		return nil
	}
	fmt.Fprintf(a.out, "%s: %s -> %s (%.0f%%)\n", id, before.Status, after.Status,
		tracker.ProgressFraction(after.Status)*100)
	return nil
}

func (a *app) progress(ctx context.Context, args []string) error {
	id, err := a.idFlag("progress", args)
	if err != nil {
		return err
	}
	if err := a.board.Refresh(ctx, a.reqs.ListAll); err != nil {
		return err
	}
	r, ok := a.board.Get(id)
	if !ok {
		return fmt.Errorf("%w: request %s", errs.ErrNotFound, id)
	}
	frac, _ := a.board.Progress(id)
	fmt.Fprintf(a.out, "%s %s %.2f\n", r.ID, r.Status, frac)
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	id, err := a.idFlag("rm", args)
	if err != nil {
		return err
	}
	if err := a.reqs.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", id)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
