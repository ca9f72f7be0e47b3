package browser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/jgivc/fetchguard/internal/common"
	"github.com/jgivc/fetchguard/internal/config"
)

const (
	linkSelector = "a"
)

type rodDriver struct {
	cfg      *config.BrowserConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	link     *rod.Element
	log      *slog.Logger
}

func NewRodDriver(cfg *config.BrowserConfig, log *slog.Logger) *rodDriver {
	return &rodDriver{
		cfg: cfg,
		log: log.With(slog.String("item", "RodDriver")),
	}
}

// Start connects to cfg.ControlURL, or launches a local browser, and sends every download
// to downloadDir.
func (d *rodDriver) Start(ctx context.Context, downloadDir string) error {
	dir, err := filepath.Abs(downloadDir)
	if err != nil {
		return fmt.Errorf("cannot resolve download dir: %w", err)
	}

	controlURL := d.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(d.cfg.Headless)
		if d.cfg.Bin != "" {
			l = l.Bin(d.cfg.Bin)
		}

		controlURL, err = l.Launch()
		if err != nil {
			return fmt.Errorf("cannot launch browser: %w", err)
		}

		d.launcher = l
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		d.cleanup()

		return fmt.Errorf("cannot connect to browser: %w", err)
	}
	d.browser = browser

	err = proto.BrowserSetDownloadBehavior{
		Behavior:      proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath:  dir,
		EventsEnabled: true,
	}.Call(browser)
	if err != nil {
		_ = d.Close()

		return fmt.Errorf("cannot set download behavior: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = d.Close()

		return fmt.Errorf("cannot create page: %w", err)
	}
	d.page = page

	d.log.Info("Browser started", slog.String("control_url", controlURL), slog.String("download_dir", dir))

	return nil
}

func (d *rodDriver) Open(ctx context.Context, url string) error {
	if d.page == nil {
		return fmt.Errorf("browser is not started")
	}

	page := d.page.Context(ctx).Timeout(d.cfg.NavigationTimeout)
	defer page.CancelTimeout()

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("cannot navigate to %s: %w", url, err)
	}

	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("cannot load %s: %w", url, err)
	}

	d.log.Info("Page opened", slog.String("url", url))

	return nil
}

// ResolveLink finds the first link whose text contains partialText and returns its href.
func (d *rodDriver) ResolveLink(ctx context.Context, partialText string) (string, error) {
	if d.page == nil {
		return "", fmt.Errorf("browser is not started")
	}

	page := d.page.Context(ctx).Timeout(d.cfg.NavigationTimeout)
	defer page.CancelTimeout()

	el, err := page.ElementR(linkSelector, linkPattern(partialText))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", common.ErrLinkNotFoundError, partialText, err)
	}

	href, err := el.Attribute("href")
	if err != nil {
		return "", fmt.Errorf("cannot read href of %q: %w", partialText, err)
	}

	if href == nil || strings.TrimSpace(*href) == "" {
		return "", fmt.Errorf("%w: %q has no href", common.ErrLinkNotFoundError, partialText)
	}

	d.link = el
	d.log.Info("Link resolved", slog.String("text", partialText), slog.String("href", *href))

	return *href, nil
}

// ClickLink clicks the link found by the last ResolveLink call.
func (d *rodDriver) ClickLink(ctx context.Context) error {
	if d.link == nil {
		return fmt.Errorf("no link resolved")
	}

	if err := d.link.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("cannot click link: %w", err)
	}

	return nil
}

func (d *rodDriver) Close() error {
	var err error
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}

	d.page = nil
	d.link = nil
	d.cleanup()

	return err
}

func (d *rodDriver) cleanup() {
	if d.launcher != nil {
		d.launcher.Cleanup()
		d.launcher = nil
	}
}

// linkPattern turns partial link text into a regexp for ElementR. The syntax shared by Go
// QuoteMeta and JS regexps is enough to escape it.
func linkPattern(partialText string) string {
	return regexp.QuoteMeta(strings.TrimSpace(partialText))
}
