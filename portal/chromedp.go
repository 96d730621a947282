package portal

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
)

// ChromeDriver implements Driver on a real Chrome instance through the
// DevTools protocol. A persistent user data dir keeps the signed-in session
// alive across runs, so authentication usually reduces to a marker check.
type ChromeDriver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opTimeout   time.Duration
	downloadDir string
	downloads   chan string
}

// NewChromeDriver launches a browser configured for the portal: headless
// per configuration, downloads routed into the artifact directory.
func NewChromeDriver(cfg config.PortalConfig) (*ChromeDriver, error) {
	downloadDir, err := filepath.Abs(cfg.DownloadDir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve download dir")
	}
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create download dir")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	opTimeout := time.Duration(cfg.StepTimeoutSeconds) * time.Second
	if opTimeout <= 0 {
		opTimeout = 20 * time.Second
	}

	d := &ChromeDriver{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opTimeout:   opTimeout,
		downloadDir: downloadDir,
		downloads:   make(chan string, 4),
	}

	// Downloads are saved under their GUID; completion events carry it back.
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if e, ok := ev.(*browser.EventDownloadProgress); ok &&
			e.State == browser.DownloadProgressStateCompleted {
			select {
			case d.downloads <- filepath.Join(downloadDir, e.GUID):
			default:
			}
		}
	})

	if err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	); err != nil {
		cancel()
		allocCancel()
		return nil, errors.Wrap(err, "start browser")
	}

	return d, nil
}

// run executes actions against the browser with a bounded per-op timeout.
// Caller cancellation is observed between actions only; a primitive action
// is never interrupted mid-flight.
func (d *ChromeDriver) run(timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

func (d *ChromeDriver) Navigate(_ context.Context, url string) error {
	err := d.run(d.opTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewAutomation(errors.AutomationTimeout, "navigating to %s timed out", url)
	}
	return err
}

func (d *ChromeDriver) Find(_ context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	err := d.run(d.opTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (d *ChromeDriver) SetValue(_ context.Context, selector, value string) error {
	err := d.run(d.opTimeout, chromedp.SetValue(selector, value, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewAutomation(errors.AutomationElementNotFound,
			"no element matched %s to set a value on", selector)
	}
	return err
}

func (d *ChromeDriver) Click(_ context.Context, selector string) error {
	err := d.run(d.opTimeout, chromedp.Click(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewAutomation(errors.AutomationElementNotFound,
			"no element matched %s to click", selector)
	}
	return err
}

func (d *ChromeDriver) ReadText(_ context.Context, selector string) (string, error) {
	var text string
	err := d.run(d.opTimeout, chromedp.Text(selector, &text, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return "", errors.NewAutomation(errors.AutomationElementNotFound,
			"no element matched %s to read", selector)
	}
	return text, err
}

func (d *ChromeDriver) WaitFor(_ context.Context, selector string, timeout time.Duration) error {
	err := d.run(timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewAutomation(errors.AutomationTimeout,
			"element %s did not appear within %s", selector, timeout)
	}
	return err
}

func (d *ChromeDriver) CurrentURL(_ context.Context) (string, error) {
	var url string
	err := d.run(d.opTimeout, chromedp.Location(&url))
	return url, err
}

func (d *ChromeDriver) DownloadTriggered(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case path := <-d.downloads:
		return path, nil
	case <-time.After(timeout):
		return "", errors.NewAutomation(errors.AutomationTimeout,
			"download did not complete within %s", timeout)
	case <-ctx.Done():
		return "", errors.Wrap(errors.ErrCancelled, ctx.Err().Error())
	}
}

// Close shuts down the browser and its allocator.
func (d *ChromeDriver) Close() error {
	d.cancel()
	d.allocCancel()
	return nil
}
