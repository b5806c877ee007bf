package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"stargate/internal/client/api"
	"stargate/internal/client/cache"
	"stargate/internal/client/config"
	"stargate/internal/client/coordinator"
	"stargate/internal/domain"
	"stargate/internal/logger"
)

const usage = `Usage: pdfsync [-config file] <command> [flags] <fileRef> [args]

Commands:
  load     <fileRef>                      show versions and annotations of the current version
  annotate <fileRef>                      create an annotation (-page -x -y -w -h -scale -comment)
  status   <fileRef> <annotationID> <status>
  comment  <fileRef> <annotationID> <text>
  assign   <fileRef> <annotationID> [user]
  delete   <fileRef> <annotationID>
  upload   <fileRef> <path.pdf>           add a new version (-description)
  promote  <fileRef> <annotationID>       turn an annotation into a task
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "pdfsync:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("pdfsync", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", os.Getenv("PDFSYNC_CONFIG"), "YAML config file")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("command is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	adapter, closer, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to open %s cache: %w", cfg.Cache.Driver, err)
	}
	defer closer.Close()

	client := api.NewClient(cfg.ServerURL, cfg.Token, cfg.StoreTimeout)
	c := coordinator.New(client, adapter,
		coordinator.WithStoreTimeout(cfg.StoreTimeout),
		coordinator.WithNotifier(func(message string) { fmt.Fprintln(stderr, "warning:", message) }),
	)

	cmd := &command{c: c, out: stdout}
	name, rest := global.Arg(0), global.Args()[1:]
	switch name {
	case "load":
		return cmd.load(ctx, rest)
	case "annotate":
		return cmd.annotate(ctx, rest)
	case "status":
		return cmd.status(ctx, rest)
	case "comment":
		return cmd.comment(ctx, rest)
	case "assign":
		return cmd.assign(ctx, rest)
	case "delete":
		return cmd.delete(ctx, rest)
	case "upload":
		return cmd.upload(ctx, rest)
	case "promote":
		return cmd.promote(ctx, rest)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", name)
	}
}

type command struct {
	c   *coordinator.Coordinator
	out io.Writer
}

func (cmd *command) load(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	file := fs.String("file", "", "local PDF shown when the file has no versions yet")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: load [-file path] <fileRef>")
	}

	var handle *coordinator.FileHandle
	if *file != "" {
		abs, err := filepath.Abs(*file)
		if err != nil {
			return err
		}
		handle = &coordinator.FileHandle{Name: filepath.Base(abs), URL: "file://" + abs}
	}

	src := cmd.c.Load(ctx, fs.Arg(0), handle)
	return cmd.print(map[string]any{
		"source":          src.String(),
		"activeVersionId": cmd.c.ActiveVersionID(),
		"viewUrl":         cmd.c.ViewURL(),
		"versions":        cmd.c.Versions(),
		"annotations":     cmd.c.Annotations(),
	})
}

func (cmd *command) annotate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("annotate", flag.ContinueOnError)
	var d coordinator.Draft
	fs.IntVar(&d.Page, "page", 1, "page number, from 1")
	fs.IntVar(&d.PageCount, "pages", 0, "page count of the active version, 0 if unknown")
	fs.Float64Var(&d.X, "x", 0, "left edge in screen pixels")
	fs.Float64Var(&d.Y, "y", 0, "top edge in screen pixels")
	fs.Float64Var(&d.Width, "w", 0, "width in screen pixels")
	fs.Float64Var(&d.Height, "h", 0, "height in screen pixels")
	fs.Float64Var(&d.Scale, "scale", 1, "viewer zoom")
	fs.StringVar(&d.Comment, "comment", "", "comment text")
	fs.StringVar(&d.CreatedBy, "user", os.Getenv("USER"), "author id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: annotate [flags] <fileRef>")
	}

	cmd.c.Load(ctx, fs.Arg(0), nil)
	res, err := cmd.c.CreateAnnotation(ctx, d)
	if err != nil {
		return err
	}
	return cmd.print(res)
}

func (cmd *command) status(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: status <fileRef> <annotationID> <status>")
	}
	cmd.c.Load(ctx, args[0], nil)
	res, err := cmd.c.UpdateStatus(ctx, cache.RecordID(args[1]), domain.AnnotationStatus(args[2]))
	if err != nil {
		return err
	}
	return cmd.print(res)
}

func (cmd *command) comment(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: comment <fileRef> <annotationID> <text>")
	}
	cmd.c.Load(ctx, args[0], nil)
	res, err := cmd.c.UpdateComment(ctx, cache.RecordID(args[1]), strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	return cmd.print(res)
}

func (cmd *command) assign(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: assign <fileRef> <annotationID> [user]")
	}
	var assignee *string
	if len(args) == 3 {
		assignee = &args[2]
	}
	cmd.c.Load(ctx, args[0], nil)
	res, err := cmd.c.UpdateAssignee(ctx, cache.RecordID(args[1]), assignee)
	if err != nil {
		return err
	}
	return cmd.print(res)
}

func (cmd *command) delete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: delete <fileRef> <annotationID>")
	}
	cmd.c.Load(ctx, args[0], nil)
	res, err := cmd.c.DeleteAnnotation(ctx, cache.RecordID(args[1]))
	if err != nil {
		return err
	}
	return cmd.print(res)
}

func (cmd *command) upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	description := fs.String("description", "", "version description")
	user := fs.String("user", os.Getenv("USER"), "uploader id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("usage: upload [-description text] <fileRef> <path.pdf>")
	}

	abs, err := filepath.Abs(fs.Arg(1))
	if err != nil {
		return err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fs.Arg(1), err)
	}

	cmd.c.Load(ctx, fs.Arg(0), nil)
	res, err := cmd.c.AddVersion(ctx, coordinator.VersionUpload{
		Filename:    filepath.Base(abs),
		URL:         "file://" + abs,
		Content:     content,
		Description: *description,
		UploadedBy:  *user,
	})
	if err != nil {
		return err
	}
	return cmd.print(res)
}

func (cmd *command) promote(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: promote <fileRef> <annotationID>")
	}
	cmd.c.Load(ctx, args[0], nil)
	res, err := cmd.c.PromoteToTask(ctx, cache.RecordID(args[1]))
	if err != nil {
		return err
	}
	return cmd.print(res)
}

func (cmd *command) print(v any) error {
	enc := json.NewEncoder(cmd.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
