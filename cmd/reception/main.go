// Command reception is the terminal side of the desk: log in, list the
// orders waiting for reception, reconcile one and follow up on a stopped
// reception.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/economato/go-order-desk/internal/config"
	"github.com/economato/go-order-desk/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.SetupLogging()

	d := &desk{cfg: cfg, in: os.Stdin, out: os.Stdout}
	app := &cli.App{
		Name:  "reception",
		Usage: "recepción de pedidos del economato",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "URL del backend REST",
				EnvVars: []string{"BACKEND_URL"},
				Value:   cfg.BackendURL,
			},
			&cli.StringFlag{
				Name:  "journal",
				Usage: "journal de recepciones: ruta sqlite, postgres:// o memory",
				Value: defaultPath("journal.db"),
			},
			&cli.StringFlag{
				Name:  "session-file",
				Usage: "archivo donde se guarda la sesión",
				Value: sessionFile(),
			},
		},
		Before: d.open,
		After:  d.close,
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "inicia sesión en el backend",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, EnvVars: []string{"DESK_PASSWORD"}, Required: true},
				},
				Action: d.login,
			},
			{
				Name:   "logout",
				Usage:  "cierra la sesión guardada",
				Action: d.logout,
			},
			{
				Name:  "pending",
				Usage: "lista las órdenes pendientes de recepción",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q", Usage: "busca por ID de orden o usuario"},
				},
				Action: d.pending,
			},
			{
				Name:      "receive",
				Usage:     "registra lo recibido y cierra la orden",
				ArgsUsage: "ORDER_ID",
				Flags:     receptionFlags(),
				Action:    d.receive,
			},
			{
				Name:      "incomplete",
				Usage:     "registra lo recibido y marca la orden como incompleta",
				ArgsUsage: "ORDER_ID",
				Flags:     receptionFlags(),
				Action:    d.incomplete,
			},
			{
				Name:      "resume",
				Usage:     "continúa una recepción detenida",
				ArgsUsage: "SAGA_ID",
				Action:    d.resume,
			},
			{
				Name:      "compensate",
				Usage:     "revierte el stock sumado por una recepción",
				ArgsUsage: "SAGA_ID",
				Action:    d.compensate,
			},
			{
				Name:      "export",
				Usage:     "exporta el tablero de órdenes a XLSX",
				ArgsUsage: "FILE.xlsx",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q", Usage: "busca por ID de orden o usuario"},
					&cli.StringFlag{Name: "type", Usage: "tipo de orden"},
				},
				Action: d.export,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("reception failed")
		stop()
		os.Exit(1)
	}
}

func receptionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "qty", Usage: "cantidad recibida, PRODUCT_ID=CANTIDAD o #LINEA=CANTIDAD (repetible)"},
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "no pedir confirmación"},
	}
}

func sessionFile() string {
	path, err := session.DefaultFilePath()
	if err != nil {
		return "session.json"
	}
	return path
}

// defaultPath places name next to the stored session, or in the working
// directory when there is no user config dir.
func defaultPath(name string) string {
	return filepath.Join(filepath.Dir(sessionFile()), name)
}
