// Command flyer-render draws a flyer from flags and writes it as a PNG file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"flyergen/internal/assets"
	"flyergen/internal/flyer"
	u "flyergen/internal/utils"
)

type options struct {
	config  string
	layout  string
	photo   string
	out     string
	fontDir string
	offline bool
	fields  map[string]*string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := pflag.NewFlagSet("flyer-render", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{fields: make(map[string]*string, len(flyer.TextFields))}
	fs.StringVarP(&opts.config, "config", "c", "", "config file (default $CONFIG_PATH or config.yaml)")
	fs.StringVarP(&opts.layout, "layout", "l", "", "layout preset: announcement or banner")
	fs.StringVarP(&opts.photo, "photo", "p", "", "profile photo file (required)")
	fs.StringVarP(&opts.out, "out", "o", "", "output PNG path (default <name>_tech_transfer.png)")
	fs.StringVar(&opts.fontDir, "font-dir", "", "font cache directory (overrides assets.font_dir)")
	fs.BoolVar(&opts.offline, "offline", false, "do not download fonts or logos")

	opts.fields[flyer.FieldName] = fs.StringP("name", "n", "", "person's name")
	opts.fields[flyer.FieldFormerCompany] = fs.String("former", "", "former company")
	opts.fields[flyer.FieldNewCompany] = fs.String("new", "", "new company")
	opts.fields[flyer.FieldRole] = fs.StringP("role", "r", "", "new role")
	opts.fields[flyer.FieldAnnouncementText] = fs.StringP("text", "t", "", "announcement text")
	opts.fields[flyer.FieldDate] = fs.StringP("date", "d", "", "effective date")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func loadConfig(path string) u.Config {
	if path == "" {
		return u.LoadConfig()
	}
	return u.LoadFrom(path)
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg := loadConfig(opts.config)
	if opts.fontDir != "" {
		cfg.Assets.FontDir = opts.fontDir
	}
	layoutName := opts.layout
	if layoutName == "" {
		layoutName = cfg.Flyer.Preset
	}
	layout, ok := flyer.PresetByName(layoutName)
	if !ok {
		return fmt.Errorf("unknown layout %q", layoutName)
	}
	comp, err := flyer.NewCompositor(layout)
	if err != nil {
		return err
	}

	var photo []byte
	if opts.photo != "" {
		if photo, err = os.ReadFile(opts.photo); err != nil {
			return fmt.Errorf("read photo: %w", err)
		}
	}
	fields := make(map[string]string, len(opts.fields))
	for k, v := range opts.fields {
		fields[k] = *v
	}
	req, err := flyer.NewRequest(fields, photo)
	if err != nil {
		return err
	}

	var fetcher *assets.Fetcher
	if !opts.offline {
		fetcher = assets.NewFetcher(cfg.Assets.FetchRPS, cfg.Assets.FetchBurst)
	}
	dir := assets.LoadDirectory(cfg.Assets.CompaniesFile)
	fonts := assets.NewFontResolver(cfg.Assets, fetcher)
	logos := assets.NewLogoResolver(dir, fetcher, assets.LogoOptions{
		Provider:     cfg.Assets.LogoProvider,
		Timeout:      cfg.Assets.LogoTimeout,
		GuessTimeout: cfg.Assets.GuessTimeout,
	})

	ctx := context.Background()
	formerLogo, _ := logos.ResolveLogo(ctx, req.FormerCompany)
	newLogo, _ := logos.ResolveLogo(ctx, req.NewCompany)
	img, err := comp.Render(req, flyer.Assets{
		Font:       fonts.Font(ctx, cfg.Flyer.FontFamily),
		FormerLogo: formerLogo,
		NewLogo:    newLogo,
	})
	if err != nil {
		return err
	}
	data, err := flyer.EncodePNG(img)
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = flyer.Filename(req.Name)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(stdout, "wrote %s (%s layout, %d bytes)\n", out, layout.Name, len(data))
	return nil
}

func main() {
	u.SetLogLevel("warn")
	if _, err := maxprocs.Set(); err != nil {
		u.Warn("Failed to set GOMAXPROCS", "error", err)
	}

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "flyer-render:", err)
		os.Exit(1)
	}
}
