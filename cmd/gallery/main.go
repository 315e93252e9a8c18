// Package main is a command line client for the gallery and notification service
// that stores frames saved from the rover dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Crys266/IoT-Project/internal/collab"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/status"
	"github.com/Crys266/IoT-Project/internal/util"
)

const usage = `usage: gallery [-c config] <command> [args]

commands:
  list                         list stored images (falls back to the local cache)
  edit <id> [flags]            update description, tags, category
  classify <id>                run object detection on an image
  telegram <id>                send an image via Telegram
  delete <id>                  delete an image
  classes [class ...]          show or replace the alert classes
  labels                       list the detector labels
  test-notify                  send a test Telegram notification
`

type app struct {
	svc    *collab.Service
	cache  *collab.Cache
	failed bool
}

func main() {
	os.Exit(run())
}

func run() int {
	util.SetupLogger()

	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	cfg, err := model.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("[Gallery] load config: %v", err)
	}
	if cfg.Collab.BaseURL == "" {
		log.Fatal("[Gallery] collab.base_url is not configured")
	}

	logs := util.NewLogManager()
	if err := logs.Configure(cfg.Logging, nil); err != nil {
		log.Fatalf("[Gallery] configure logging: %v", err)
	}
	defer logs.Close()

	a := &app{}
	reporter := status.NewReporter(status.Options{
		IdleText:    cfg.Status.IdleText,
		DimAfter:    cfg.Status.DimAfter(),
		RevertAfter: cfg.Status.RevertAfter(),
		Logger:      logs.Logger("status"),
	})
	reporter.AddSink(func(l status.Line) {
		if l.Idle || l.Dimmed {
			return
		}
		if l.Severity == model.SeverityError {
			a.failed = true
		}
		fmt.Fprintf(os.Stderr, "[%s] %s\n", l.Severity, l.Text)
	})

	if cfg.Collab.CachePath != "" {
		if a.cache, err = collab.OpenCache(cfg.Collab.CachePath); err != nil {
			util.Error("gallery cache disabled: %v", err)
		} else {
			defer a.cache.Close()
		}
	}
	token := cfg.Collab.Token
	if token == "" {
		token = cfg.Connection.Token
	}
	client := collab.NewClient(cfg.Collab.BaseURL, token, &http.Client{Timeout: cfg.Collab.Timeout()}, logs.Logger("collab"))
	a.svc = collab.NewService(client, a.cache, reporter, nil, nil, logs.Logger("collab"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if a.failed {
		return 1
	}
	return 0
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return a.list(ctx)
	case "edit":
		return a.edit(ctx, args)
	case "classify":
		id, err := oneID(cmd, args)
		if err != nil {
			return err
		}
		_, _ = a.svc.ClassifyImage(ctx, id)
	case "telegram":
		id, err := oneID(cmd, args)
		if err != nil {
			return err
		}
		_ = a.svc.SendImageTelegram(ctx, id)
	case "delete":
		id, err := oneID(cmd, args)
		if err != nil {
			return err
		}
		if img, ok := a.svc.Lookup(id); ok {
			fmt.Printf("deleting %s (%s)\n", img.Filename, img.Created)
		}
		_ = a.svc.DeleteImage(ctx, id)
	case "classes":
		return a.classes(ctx, args)
	case "labels":
		labels, err := a.svc.Labels(ctx)
		if err == nil {
			fmt.Println(strings.Join(labels, "\n"))
		}
	case "test-notify":
		_ = a.svc.TestNotification(ctx)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
	return nil
}

func oneID(cmd string, args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%s needs exactly one image id", cmd)
	}
	return args[0], nil
}

func (a *app) list(ctx context.Context) error {
	g, err := a.svc.LoadGallery(ctx)
	if err != nil {
		if a.cache == nil {
			return nil
		}
		cached, _, ok, cerr := a.cache.Gallery()
		if cerr != nil || !ok {
			return nil
		}
		if age, ok := a.svc.Age(); ok {
			fmt.Printf("showing cached gallery from %s ago\n", age.Round(time.Second))
		}
		g = cached
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tCREATED\tOBJECTS\tTAGS")
	for _, img := range g.Images {
		objects := "-"
		if img.Detection != nil {
			objects = fmt.Sprint(img.Detection.ObjectsCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", img.ID, img.Filename, img.Created, objects, strings.Join(img.Tags, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d images, %.2f MB\n", g.Statistics.TotalImages, g.Statistics.TotalSizeMB)
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("edit needs an image id")
	}
	id := args[0]
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	description := fs.String("description", "", "new description")
	tags := fs.String("tags", "", "comma separated tags")
	category := fs.String("category", "", "category")
	clearGPS := fs.Bool("clear-gps", false, "remove the stored position")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	img, ok := a.svc.Lookup(id)
	if !ok {
		g, err := a.svc.LoadGallery(ctx)
		if err != nil {
			return nil
		}
		if img, ok = findImage(g, id); !ok {
			return fmt.Errorf("image %s not found", id)
		}
	}
	u := collab.UpdateFrom(img)
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "description":
			u.Description = *description
		case "tags":
			u.Tags = splitList(*tags)
		case "category":
			u.Category = *category
		}
	})
	if *clearGPS {
		u.GPSLat, u.GPSLon = nil, nil
	}
	_ = a.svc.UpdateImage(ctx, id, u)
	return nil
}

func (a *app) classes(ctx context.Context, args []string) error {
	if len(args) == 0 {
		classes, err := a.svc.DangerousClasses(ctx)
		if err == nil {
			fmt.Println(strings.Join(classes, "\n"))
		}
		return nil
	}
	_ = a.svc.SetDangerousClasses(ctx, splitList(strings.Join(args, ",")))
	return nil
}

func findImage(g collab.Gallery, id string) (collab.Image, bool) {
	for _, img := range g.Images {
		if img.ID == id {
			return img, true
		}
	}
	return collab.Image{}, false
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
