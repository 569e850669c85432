package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/board"
	"github.com/economato/go-order-desk/internal/config"
	"github.com/economato/go-order-desk/internal/history"
	"github.com/economato/go-order-desk/internal/journal"
	"github.com/economato/go-order-desk/internal/orders"
	"github.com/economato/go-order-desk/internal/reception"
	"github.com/economato/go-order-desk/internal/saga"
	"github.com/economato/go-order-desk/internal/session"
)

// sessionID is the key of the one terminal session in the session file.
const sessionID = "cli"

type desk struct {
	cfg config.Config
	in  io.Reader
	out io.Writer

	sessions *session.Manager
	client   *api.Client
	journal  journal.Store
	wf       *reception.Workflow
}

func (d *desk) open(c *cli.Context) error {
	backend := c.String("backend")
	store := session.NewFile(c.String("session-file"))
	// login needs no token; everything else reads it from the session file
	d.sessions = session.NewManager(api.New(backend, api.WithTimeout(d.cfg.BackendTimeout)).Auth, store, d.cfg.SessionTTL)
	d.client = api.New(backend,
		api.WithTimeout(d.cfg.BackendTimeout),
		api.WithTokenSource(d.sessions.Source(sessionID)),
		api.WithCompletedStatus(orders.ParseStatus(d.cfg.CompletedStatus)),
	)
	return nil
}

// workflow opens the journal on first use so login and pending never
// touch it.
func (d *desk) workflow(c *cli.Context) (*reception.Workflow, error) {
	if d.wf != nil {
		return d.wf, nil
	}
	dsn := c.String("journal")
	if path, ok := journalFile(dsn); ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
	}
	store, err := journal.Open(c.Context, dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	d.journal = store
	d.wf = reception.New(d.client.Orders, d.client.Products, reception.WithOrchestrator(saga.NewOrchestrator(store)))
	return d.wf, nil
}

// journalFile reports the SQLite file a journal DSN points at.
func journalFile(dsn string) (string, bool) {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	if dsn == "" || dsn == "memory" || strings.Contains(dsn, "://") {
		return "", false
	}
	return dsn, true
}

func (d *desk) close(*cli.Context) error {
	if d.journal == nil {
		return nil
	}
	return d.journal.Close()
}

func (d *desk) login(c *cli.Context) error {
	info, err := d.sessions.Login(c.Context, sessionID, c.String("user"), c.String("password"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintf(d.out, "Sesión iniciada como %s", info.Username)
	if info.Role != "" {
		fmt.Fprintf(d.out, " (%s)", info.Role)
	}
	fmt.Fprintln(d.out)
	return nil
}

func (d *desk) logout(c *cli.Context) error {
	if err := d.sessions.Logout(c.Context, sessionID); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintln(d.out, session.LoggedOutMessage)
	return nil
}

// fail turns a workflow error into the message the operator reads.
func (d *desk) fail(err error) error {
	var verr *reception.ValidationError
	switch {
	case errors.Is(err, session.ErrExpired):
		log.Warn().Msg("session expired")
		return cli.Exit("La sesión ha expirado. Ejecuta `reception login` de nuevo.", 1)
	case errors.Is(err, session.ErrNoSession):
		return cli.Exit("No hay sesión. Ejecuta `reception login` primero.", 1)
	case errors.Is(err, reception.ErrAmbiguousProduct):
		return cli.Exit("El producto aparece en varias líneas. Usa --qty #LINEA=CANTIDAD.", 1)
	case errors.As(err, &verr):
		for _, l := range verr.Lines {
			fmt.Fprintf(d.out, "  %s (%d): %q %s\n", l.ProductName, l.ProductID, l.Input, l.Reason)
		}
		return cli.Exit(verr.Error(), 1)
	}
	return cli.Exit(err.Error(), 1)
}

func (d *desk) pending(c *cli.Context) error {
	wf, err := d.workflow(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if _, err := wf.ListPending(c.Context); err != nil {
		return d.fail(err)
	}
	list := wf.Filter(c.String("q"))
	if len(list) == 0 {
		fmt.Fprintln(d.out, "No hay órdenes pendientes de recepción.")
		return nil
	}
	tw := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSUARIO\tFECHA\tLÍNEAS\tTOTAL")
	for _, o := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", o.ID, o.UserName, history.FormatDate(o.OrderDate), len(o.Lines), o.TotalPrice.StringFixed(2))
	}
	return tw.Flush()
}

// form opens ORDER_ID and applies every --qty.
func (d *desk) form(c *cli.Context, wf *reception.Workflow) (*reception.Form, error) {
	id, err := strconv.Atoi(c.Args().First())
	if err != nil || id <= 0 {
		return nil, cli.Exit("Indica el ID de la orden.", 2)
	}
	qty, err := parseQuantities(c.StringSlice("qty"))
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	f, err := wf.OpenForm(c.Context, id)
	if err != nil {
		return nil, d.fail(err)
	}
	if err := setQuantities(f, qty); err != nil {
		return nil, d.fail(err)
	}
	d.printForm(f)
	return f, nil
}

func (d *desk) printForm(f *reception.Form) {
	fmt.Fprintf(d.out, "Orden #%d de %s (%s)\n", f.Order.ID, f.Order.UserName, f.Order.Status.Label())
	tw := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPRODUCTO\tPEDIDO\tRECIBIDO\t")
	for i, l := range f.Lines() {
		mark := l.Indicator
		if !l.Valid {
			mark = l.Message
		}
		fmt.Fprintf(tw, "%d\t%s (%d)\t%s\t%s\t%s\n", i, l.ProductName, l.ProductID, l.Requested.String(), l.Input, mark)
	}
	_ = tw.Flush()
}

func (d *desk) receive(c *cli.Context) error {
	wf, err := d.workflow(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	f, err := d.form(c, wf)
	if err != nil {
		return err
	}
	var confirmer reception.Confirmer = reception.Confirmed
	if !c.Bool("yes") {
		confirmer = stdinConfirmer(d.in, d.out)
	}
	res, err := wf.Confirm(c.Context, f, confirmer)
	if errors.Is(err, reception.ErrCancelled) {
		fmt.Fprintln(d.out, "Recepción cancelada. No se ha modificado nada.")
		return nil
	}
	return d.report(res, err)
}

func (d *desk) incomplete(c *cli.Context) error {
	wf, err := d.workflow(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	f, err := d.form(c, wf)
	if err != nil {
		return err
	}
	if !c.Bool("yes") {
		ok, err := ask(d.in, d.out, fmt.Sprintf("¿Marcar la orden #%d como INCOMPLETA?", f.Order.ID))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if !ok {
			fmt.Fprintln(d.out, "Operación cancelada.")
			return nil
		}
	}
	res, err := wf.MarkIncomplete(c.Context, f)
	return d.report(res, err)
}

func (d *desk) resume(c *cli.Context) error {
	wf, err := d.workflow(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	id := c.Args().First()
	if id == "" {
		return cli.Exit("Indica el ID de la recepción.", 2)
	}
	res, err := wf.Resume(c.Context, id)
	return d.report(res, err)
}

func (d *desk) compensate(c *cli.Context) error {
	wf, err := d.workflow(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	id := c.Args().First()
	if id == "" {
		return cli.Exit("Indica el ID de la recepción.", 2)
	}
	res, err := wf.Compensate(c.Context, id)
	return d.report(res, err)
}

// report prints a finished run, or where a stopped one can be picked up.
func (d *desk) report(res reception.Result, err error) error {
	var se *saga.StepError
	if errors.As(err, &se) {
		fmt.Fprintln(d.out, res.Message)
		fmt.Fprintf(d.out, "Recepción %s detenida en %s: %v\n", se.SagaID, se.Step, se.Err)
		fmt.Fprintf(d.out, "Reintenta con `reception resume %s` o revierte con `reception compensate %s`.\n", se.SagaID, se.SagaID)
		return cli.Exit("", 1)
	}
	if err != nil {
		return d.fail(err)
	}
	fmt.Fprintln(d.out, res.Message)
	for _, delta := range res.Deltas {
		fmt.Fprintf(d.out, "  producto %d: %s\n", delta.ProductID, delta.Quantity.String())
	}
	if res.SagaID != "" {
		fmt.Fprintf(d.out, "Recepción %s\n", res.SagaID)
	}
	return nil
}

func (d *desk) export(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("Indica el archivo de destino.", 2)
	}
	b := board.New(d.client.Orders, nil, nil)
	if err := b.Load(c.Context); err != nil {
		return d.fail(err)
	}
	b.SetQuery(c.String("q"))
	if t := c.String("type"); t != "" {
		b.SetFacet(t)
	}
	f, err := os.Create(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := b.Export(f); err != nil {
		_ = f.Close()
		return cli.Exit(err.Error(), 1)
	}
	if err := f.Close(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintf(d.out, "%d órdenes exportadas a %s\n", len(b.Filtered()), path)
	return nil
}

// quantity targets a form line by index (#i=QTY) or by product (ID=QTY).
type quantity struct {
	line      int
	byLine    bool
	productID int
	input     string
}

// parseQuantities reads #LINE=QTY and PRODUCT=QTY pairs. The quantity is
// kept as typed; the form validates it.
func parseQuantities(pairs []string) ([]quantity, error) {
	out := make([]quantity, 0, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("cantidad %q: usa PRODUCTO=CANTIDAD o #LINEA=CANTIDAD", p)
		}
		k = strings.TrimSpace(k)
		q := quantity{input: strings.TrimSpace(v)}
		if rest, found := strings.CutPrefix(k, "#"); found {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("cantidad %q: línea inválida", p)
			}
			q.line, q.byLine = n, true
		} else {
			id, err := strconv.Atoi(k)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("cantidad %q: producto inválido", p)
			}
			q.productID = id
		}
		out = append(out, q)
	}
	return out, nil
}

func setQuantities(f *reception.Form, qty []quantity) error {
	for _, q := range qty {
		var err error
		if q.byLine {
			err = f.SetReceived(q.line, q.input)
		} else {
			err = f.SetProduct(q.productID, q.input)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func stdinConfirmer(in io.Reader, out io.Writer) reception.Confirmer {
	return reception.ConfirmFunc(func(_ context.Context, p reception.Prompt) (bool, error) {
		return ask(in, out, p.Message)
	})
}

// ask reads one answer; anything but yes is no.
func ask(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [s/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s", "si", "sí", "y", "yes":
		return true, nil
	}
	return false, nil
}
