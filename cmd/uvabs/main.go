package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"uvabs/internal/api"
	"uvabs/internal/batch"
	"uvabs/internal/correct"
	"uvabs/internal/fetch"
	"uvabs/internal/labware"
	"uvabs/internal/report"
	"uvabs/internal/schedule"
	"uvabs/internal/store"
	"uvabs/internal/upload"
)

type Globals struct {
	DataRoot string `help:"Directory containing AB* batch folders." env:"UVABS_DATA_ROOT" default:"data"`
	DB       string `help:"Path to the SQLite database." env:"UVABS_DB" default:"data/uvabs.db"`

	MethodID     int     `help:"Labware analysis method ID recorded with every spectrum." env:"UVABS_METHOD_ID" default:"10666"`
	CuvetteLen   float64 `name:"cuvette-len" help:"Cuvette path length in cm." env:"UVABS_CUVETTE_LEN" default:"5"`
	Dilution     float64 `help:"Dilution factor applied to every sample." env:"UVABS_DILUTION" default:"1"`
	ForceUpdate  bool    `help:"Replace existing records instead of skipping them." env:"UVABS_FORCE_UPDATE"`
	Actor        string  `help:"Name recorded in the upload log." env:"UVABS_ACTOR" default:"uvabs"`

	FTPHost     string        `help:"Instrument PC FTP host:port; empty disables syncing." env:"UVABS_FTP_HOST"`
	FTPUser     string        `help:"FTP user." env:"UVABS_FTP_USER"`
	FTPPassword string        `help:"FTP password." env:"UVABS_FTP_PASSWORD"`
	FTPDir      string        `help:"Remote directory holding AB* folders." env:"UVABS_FTP_DIR" default:"/"`
	FTPTimeout  time.Duration `help:"FTP dial timeout." env:"UVABS_FTP_TIMEOUT" default:"30s"`

	SMTPHost     string   `help:"SMTP host for the run report; empty disables mail." env:"UVABS_SMTP_HOST"`
	SMTPPort     int      `help:"SMTP port." env:"UVABS_SMTP_PORT" default:"587"`
	SMTPUser     string   `help:"SMTP user." env:"UVABS_SMTP_USER"`
	SMTPPassword string   `help:"SMTP password." env:"UVABS_SMTP_PASSWORD"`
	MailFrom     string   `help:"Report sender address." env:"UVABS_MAIL_FROM"`
	MailTo       []string `help:"Report recipient addresses." env:"UVABS_MAIL_TO"`
}

type CLI struct {
	Globals

	Run  RunCmd  `cmd:"" default:"withargs" help:"Sync, process and report on a schedule."`
	Once OnceCmd `cmd:"" help:"Run a single pass and exit."`
	Map  MapCmd  `cmd:"" help:"Register a Labware text ID to water sample ID mapping."`
}

type RunCmd struct {
	Listen   string        `help:"HTTP listen address for health, status and metrics." env:"UVABS_LISTEN" default:":8080"`
	Interval time.Duration `help:"Time between processing runs." env:"UVABS_INTERVAL" default:"6h"`
}

type OnceCmd struct{}

type MapCmd struct {
	LabwareID     string `arg:"" help:"Labware text ID, e.g. NR-2019-00001."`
	WaterSampleID int64  `arg:"" help:"Water sample ID it maps to."`
}

// app wires the processing pipeline once and reuses it across runs.
type app struct {
	globals *Globals
	store   *store.Store
	orch    *batch.Orchestrator
	syncer  *fetch.Syncer
	mailer  report.Mailer
	server  *api.Server
}

func newApp(g *Globals) (*app, error) {
	st, err := store.Open(g.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Println("database migrated")

	coordinator := upload.NewCoordinator(st, upload.DirArchiver{}, g.ForceUpdate, g.Actor)
	orch := batch.NewOrchestrator(
		labware.NewStoreResolver(st),
		correct.StaticDilution(g.Dilution),
		coordinator,
		g.MethodID,
		g.CuvetteLen,
	)

	return &app{
		globals: g,
		store:   st,
		orch:    orch,
		syncer: fetch.NewSyncer(fetch.Config{
			Host:      g.FTPHost,
			User:      g.FTPUser,
			Password:  g.FTPPassword,
			RemoteDir: g.FTPDir,
			Timeout:   g.FTPTimeout,
		}),
		mailer: report.NewMailer(report.MailConfig{
			Host:     g.SMTPHost,
			Port:     g.SMTPPort,
			Username: g.SMTPUser,
			Password: g.SMTPPassword,
			From:     g.MailFrom,
			To:       g.MailTo,
		}),
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

// RunOnce is one full pass: sync instrument exports, process every batch
// folder, then mail the run log with spectrum previews attached.
func (a *app) RunOnce(ctx context.Context) error {
	if a.syncer.Enabled() {
		if _, err := a.syncer.Sync(ctx, a.globals.DataRoot); err != nil {
			// Process whatever is already local; syncing recovers next run.
			log.Printf("fetch: sync failed, processing local files only: %v", err)
		}
	}

	rep, err := a.orch.Run(ctx, a.globals.DataRoot)
	if err != nil {
		return err
	}
	if a.server != nil {
		a.server.RecordRun(rep)
	}

	subject := fmt.Sprintf("UV absorbance upload report %s", rep.FinishedAt.Format("2006-01-02"))
	if err := a.mailer.Send(ctx, subject, report.Render(rep), a.plots(rep)); err != nil {
		log.Printf("report: sending mail failed: %v", err)
	}
	return nil
}

// plots renders preview charts for up to five uploaded spectra per run.
func (a *app) plots(rep batch.RunReport) []report.Attachment {
	const maxPlots = 5

	var attachments []report.Attachment
	for _, b := range rep.Batches {
		for _, cs := range b.Uploaded {
			if len(attachments) == maxPlots {
				return attachments
			}
			data, err := report.RenderPNG(cs)
			if err != nil {
				log.Printf("report: plot for water sample %d: %v", cs.WaterSampleID, err)
				continue
			}
			attachments = append(attachments, report.Attachment{
				Name: fmt.Sprintf("ws_%d_%s.png", cs.WaterSampleID, cs.SerialNo),
				Data: data,
			})
		}
	}
	return attachments
}

func (c *RunCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()
	a.server = api.NewServer(a.store, c.Listen)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.New(a, c.Interval, clockwork.NewRealClock())
	go scheduler.Run(ctx)

	log.Printf("serving on %s, processing every %s", c.Listen, c.Interval)
	return a.server.Run(ctx)
}

func (c *OnceCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.RunOnce(ctx)
}

func (c *MapCmd) Run(g *Globals) error {
	st, err := store.Open(g.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	if err := st.InsertLabwareMapping(context.Background(), c.LabwareID, c.WaterSampleID); err != nil {
		return err
	}
	log.Printf("mapped %s to water sample ID %d", c.LabwareID, c.WaterSampleID)
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("uvabs"),
		kong.Description("Uploads corrected UV absorbance spectra from spectrophotometer exports to the water sample database."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}
