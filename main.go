package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eclipse/paho.mqtt.golang"

	"github.com/matt-g-everett/ugoiratx/api"
	"github.com/matt-g-everett/ugoiratx/apng"
	"github.com/matt-g-everett/ugoiratx/fetch"
	"github.com/matt-g-everett/ugoiratx/stream"
	"github.com/matt-g-everett/ugoiratx/ugoira"
)

type app struct {
	Config     stream.Config
	Client     mqtt.Client
	Streamer   *stream.Streamer
	Controller *stream.Controller
	Api        *api.Api
}

func newApp() *app {
	a := new(app)
	return a
}

func (a *app) handleOnConnect(client mqtt.Client) {
	log.Println("Connected")
	if err := a.Controller.Subscribe(); err != nil {
		log.Printf("Subscribe failed: %v", err)
	}
}

func (a *app) readConfig(configPath string) {
	c, err := stream.ReadConfig(configPath)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	a.Config = c
}

func (a *app) driver() *ugoira.Driver {
	opts, err := a.Config.EncoderOptions()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	return ugoira.NewDriver(opts)
}

// serve runs the MQTT job loop and the artifact server until signalled.
func (a *app) serve(ctx context.Context) {
	if a.Config.Mqtt.URL == "" {
		log.Fatal("Config: mqtt.url is required")
	}

	store, err := api.NewStore(a.Config.Output.Dir, a.Config.Output.BaseURL)
	if err != nil {
		log.Fatal(err)
	}
	a.Api = api.NewApi(a.Config.Output.Listen, store)

	options := mqtt.NewClientOptions().
		AddBroker(a.Config.Mqtt.URL).
		SetClientID(a.Config.Mqtt.ClientID).
		SetUsername(a.Config.Mqtt.Username).
		SetPassword(a.Config.Mqtt.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetOnConnectHandler(a.handleOnConnect)
	a.Client = mqtt.NewClient(options)

	fetcher := fetch.New(&http.Client{}, a.Config.Fetch.Referer, a.Config.Fetch.UserAgent, a.Config.Fetch.MaxBytes)
	a.Streamer = stream.NewStreamer(a.Config, a.Client)
	a.Controller = stream.NewController(a.Config, a.Client, a.Streamer, fetcher, store, a.driver())

	go func() {
		if err := a.Api.Serve(ctx); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Artifact server: %v", err)
		}
	}()

	if token := a.Client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect: %v", token.Error())
	}
	defer a.Client.Disconnect(250)

	a.Controller.Run(ctx)
	log.Println("Shutting down")
}

// convert runs one local archive through the pipeline and saves the result.
func (a *app) convert(ctx context.Context, archivePath, metaPath, outPath, id, title, variant string) error {
	raw, err := os.ReadFile(archivePath)
	if err != nil {
		return err
	}
	metaJSON, err := os.ReadFile(metaPath)
	if err != nil {
		return err
	}
	meta, err := ugoira.ParseMetadata(metaJSON)
	if err != nil {
		return err
	}

	m := meta.Manifest(id, title, variant)
	progress := ugoira.ProgressFunc(func(p ugoira.Progress) {
		fmt.Fprintf(os.Stderr, "\rCreating %d%%", int(p.Fraction*100))
	})
	art, err := a.driver().Run(ctx, raw, m, progress)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		var se *ugoira.StageError
		if errors.As(err, &se) {
			return fmt.Errorf("%s: %w", se.Message(), err)
		}
		return err
	}

	if outPath == "" {
		outPath = art.Filename
	} else if fi, err := os.Stat(outPath); err == nil && fi.IsDir() {
		outPath = filepath.Join(outPath, art.Filename)
	}
	if err := os.WriteFile(outPath, art.Data, 0o644); err != nil {
		return err
	}
	log.Printf("Saved %s (%d frames, %d bytes)", outPath, art.Frames, len(art.Data))
	return nil
}

func inspect(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	anim, err := apng.DecodeAll(bytes.NewReader(b))
	if err != nil {
		return err
	}
	fmt.Printf("%s: %dx%d, %d frames, plays %d\n", path, anim.Width, anim.Height, len(anim.Frames), anim.NumPlays)
	var total time.Duration
	for i, f := range anim.Frames {
		c := f.Control
		fmt.Printf("  %4d  %dx%d+%d+%d  %d/%d s (%v)\n", i, c.Width, c.Height, c.XOffset, c.YOffset, c.DelayNum, c.DelayDen, c.Delay())
		total += c.Delay()
	}
	fmt.Printf("  total %v\n", total)
	return nil
}

func main() {
	mqtt.ERROR = log.New(os.Stdout, "", 0)

	// Parse command line parameters
	configPath := flag.String("config", "config.yaml", "YAML config file.")
	archivePath := flag.String("archive", "", "Convert this local zip instead of serving jobs.")
	metaPath := flag.String("meta", "", "Animation metadata JSON for -archive.")
	outPath := flag.String("out", "", "Output file or directory for -archive.")
	id := flag.String("id", "", "Illustration id used in the output filename.")
	title := flag.String("title", "", "Illustration title used in the output filename.")
	variant := flag.String("variant", "Apng", "Suffix appended to the output filename.")
	inspectPath := flag.String("inspect", "", "Print the frames and delays of an APNG and exit.")
	flag.Parse()

	if *inspectPath != "" {
		if err := inspect(*inspectPath); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	if *archivePath != "" {
		if _, err := os.Stat(*configPath); err == nil {
			a.readConfig(*configPath)
		} else {
			a.Config.SetDefaults()
		}
		if *metaPath == "" {
			log.Fatal("-meta is required with -archive")
		}
		if err := a.convert(ctx, *archivePath, *metaPath, *outPath, *id, *title, *variant); err != nil {
			log.Fatal(err)
		}
		return
	}

	a.readConfig(*configPath)
	log.Printf("Config: mqtt %s, jobs on %s, artifacts in %s", a.Config.Mqtt.URL, a.Config.Mqtt.Topics.Jobs, a.Config.Output.Dir)
	a.serve(ctx)
}
