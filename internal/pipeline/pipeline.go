// Package pipeline runs one encode pass over a dataset root: it pairs images
// with their instance masks, encodes every mask, commits accepted images to
// the annotation document and quarantines the rest.
//
// With one worker every image is encoded and then committed or quarantined
// before the next is read. With more, encoding runs ahead on several
// goroutines but results are committed in discovery order by a single
// goroutine, and a result whose files an earlier quarantine moved away is
// encoded again, so both modes produce the same document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/model-collapse/maskcoco/internal/coco"
	"github.com/model-collapse/maskcoco/internal/config"
	"github.com/model-collapse/maskcoco/internal/logging"
	"github.com/model-collapse/maskcoco/internal/mask"
	"github.com/model-collapse/maskcoco/internal/pairing"
	"github.com/model-collapse/maskcoco/internal/quarantine"
)

// ErrLocked is returned when another run holds the dataset root lock.
var ErrLocked = errors.New("pipeline: dataset root is locked by another run")

// Failure reasons for file-level problems; encoder rejections use the
// reasons defined by the mask package.
const (
	ReasonUnreadableImage = "image cannot be decoded"
	ReasonUnreadableMask  = "mask cannot be decoded"
	ReasonNoCategory      = "mask name matches no category"
	ReasonPanic           = "encoder panic"
)

// Options configures a Runner.
type Options struct {
	Root   string
	Config *config.Config
	Logger *slog.Logger
	// Confirm is consulted after the layout check; returning false ends the
	// run without touching the dataset.
	Confirm func(Layout) (bool, error)
	// Progress is called after every committed or quarantined image.
	Progress func(done, total int)
	// Now stamps the document creation date.
	Now func() time.Time
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID            string
	Declined         bool
	Images           int
	Accepted         int
	Quarantined      int
	Annotations      int
	RejectedMasks    int
	Collisions       int
	QuarantineErrors int
	DocumentPath     string
	Elapsed          time.Duration
}

// Runner executes encode passes.
type Runner struct {
	cfg      *config.Config
	layout   Layout
	logger   *slog.Logger
	confirm  func(Layout) (bool, error)
	progress func(done, total int)
	now      func() time.Time
}

// New validates opts and prepares a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("%w: no dataset root given", ErrLayout)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		cfg:      opts.Config,
		layout:   ResolveLayout(opts.Root, opts.Config.Dataset),
		logger:   logging.NewComponentLogger(opts.Logger, "encode"),
		confirm:  opts.Confirm,
		progress: opts.Progress,
		now:      now,
	}, nil
}

// Layout returns the resolved dataset layout.
func (r *Runner) Layout() Layout {
	return r.layout
}

// imageResult is the buffered encoding of one image and its masks.
type imageResult struct {
	image  string
	masks  []string
	record coco.ImageRecord
	anns   []coco.Annotation
	reason string
}

func (res *imageResult) failed() bool {
	return res.reason != ""
}

// Run performs one pass. Setup problems, a held lock, builder id conflicts and
// document write failures are returned as errors; per-image problems are
// handled by quarantine and reported in the Summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", sum.RunID)

	if err := r.layout.Check(); err != nil {
		return sum, err
	}
	if r.confirm != nil {
		ok, err := r.confirm(r.layout)
		if err != nil {
			return sum, fmt.Errorf("confirm layout: %w", err)
		}
		if !ok {
			sum.Declined = true
			return sum, nil
		}
	}

	lock := flock.New(r.layout.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return sum, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return sum, ErrLocked
	}
	defer func() { _ = lock.Unlock() }()

	resolver := &pairing.Resolver{
		ImageDir:  r.layout.ImagesDir,
		MaskDir:   r.layout.MasksDir,
		ImageExts: r.cfg.Encode.ImageExtensions,
		MaskExts:  r.cfg.Encode.MaskExtensions,
	}
	images, err := resolver.Images()
	if err != nil {
		return sum, err
	}
	sum.Images = len(images)
	logger.Info("encode started", "root", r.layout.Root, "images", len(images), "workers", r.cfg.Encode.Workers)

	q := &lazyQuarantine{
		handler: quarantine.Handler{Dir: r.layout.QuarantineDir, Logger: logging.NewComponentLogger(logger, "quarantine"), RunID: sum.RunID},
		logger:  logger,
	}
	defer q.close()

	builder := coco.NewBuilder(r.documentInfo(), documentLicenses(r.cfg), documentCategories(r.cfg))
	p := &pass{runner: r, resolver: resolver, images: images, builder: builder, q: q, sum: &sum, logger: logger}
	if r.cfg.Encode.Workers > 1 {
		err = p.concurrent(ctx, r.cfg.Encode.Workers)
	} else {
		err = p.sequential(ctx)
	}
	sum.Elapsed = time.Since(start)
	if err != nil {
		return sum, err
	}

	doc := builder.Finalize()
	sum.DocumentPath = r.layout.DocumentPath()
	if err := coco.Write(sum.DocumentPath, doc); err != nil {
		return sum, err
	}
	sum.Elapsed = time.Since(start)
	logger.Info("document written",
		"path", sum.DocumentPath,
		"images", sum.Accepted,
		"annotations", sum.Annotations,
		"quarantined", sum.Quarantined,
		"elapsed", sum.Elapsed.Round(time.Millisecond).String(),
	)
	return sum, nil
}

// pass is the state of one encode pass shared by the sequential and the
// concurrent loop.
type pass struct {
	runner   *Runner
	resolver *pairing.Resolver
	images   []string
	builder  *coco.Builder
	q        *lazyQuarantine
	sum      *Summary
	logger   *slog.Logger
}

// sequential encodes and commits one image at a time.
func (p *pass) sequential(ctx context.Context) error {
	for i, path := range p.images {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := p.runner.encodeImage(p.resolver, path, p.logger)
		if err != nil {
			return err
		}
		if err := p.commit(ctx, res); err != nil {
			return err
		}
		p.report(i + 1)
	}
	return nil
}

// concurrent encodes on up to workers goroutines while a single committer
// takes results in discovery order. An encoder may run before an earlier
// image's quarantine moved one of its files away; the committer re-encodes
// such a result so the outcome matches the sequential loop.
func (p *pass) concurrent(ctx context.Context, workers int) error {
	// One buffered slot per image keeps commits in discovery order no matter
	// which worker finishes first.
	slots := make([]chan *imageResult, len(p.images))
	for i := range slots {
		slots[i] = make(chan *imageResult, 1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(workers + 1)
	g.Go(func() error {
		for i, path := range p.images {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				res, err := p.runner.encodeImage(p.resolver, path, p.logger)
				if err != nil {
					return err
				}
				slots[i] <- res
				return nil
			})
		}
		return nil
	})

	commitErr := func() error {
		for i := range slots {
			var res *imageResult
			select {
			case <-gctx.Done():
				return gctx.Err()
			case res = <-slots[i]:
			}
			if stale(res) {
				p.logger.Debug("re-encoding image after quarantine moved its files", "image", filepath.Base(res.image))
				var err error
				if res, err = p.runner.encodeImage(p.resolver, res.image, p.logger); err != nil {
					return err
				}
			}
			if err := p.commit(gctx, res); err != nil {
				return err
			}
			p.report(i + 1)
		}
		return nil
	}()
	if commitErr != nil {
		cancel()
	}
	waitErr := g.Wait()
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case waitErr != nil && !errors.Is(waitErr, context.Canceled):
		return waitErr
	}
	return commitErr
}

// stale reports whether a file the encoder read has since been moved away.
// Quarantine only removes files from the image and mask trees, so a result
// whose files all remain saw the same masks the sequential loop would see.
func stale(res *imageResult) bool {
	for _, path := range append([]string{res.image}, res.masks...) {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return true
		}
	}
	return false
}

func (p *pass) report(done int) {
	if p.runner.progress != nil {
		p.runner.progress(done, len(p.images))
	}
}

func (p *pass) commit(ctx context.Context, res *imageResult) error {
	sum := p.sum
	if !res.failed() {
		img, anns, err := p.builder.Commit(res.record, res.anns)
		if err != nil {
			return fmt.Errorf("commit %s: %w", res.record.FileName, err)
		}
		sum.Accepted++
		sum.Annotations += len(anns)
		p.logger.Debug("image committed", "image", img.FileName, "image_id", img.ID, "annotations", len(anns))
		return nil
	}

	sum.Quarantined++
	p.logger.Warn("image quarantined", "image", filepath.Base(res.image), "masks", len(res.masks), "reason", res.reason)
	paths := append([]string{res.image}, res.masks...)
	for _, err := range p.q.move(ctx, res.reason, paths) {
		var collision *quarantine.CollisionError
		if errors.As(err, &collision) {
			sum.Collisions++
		} else {
			sum.QuarantineErrors++
		}
	}
	return nil
}

// encodeImage reads and encodes one image's masks. Only walk failures of the
// mask tree are returned as errors; everything else ends in a failed result.
func (r *Runner) encodeImage(resolver *pairing.Resolver, path string, logger *slog.Logger) (res *imageResult, err error) {
	res = &imageResult{image: path}
	defer func() {
		if e := recover(); e != nil {
			logger.Error("encoder panic", "image", filepath.Base(path), "panic", e, "stack", string(debug.Stack()))
			res, err = &imageResult{image: path, masks: res.masks, reason: ReasonPanic}, nil
		}
	}()

	masks, err := resolver.CollectMasks(path)
	if err != nil {
		return nil, err
	}
	res.masks = masks

	width, height, err := imageSize(path)
	if err != nil {
		logger.Warn("image unreadable", "image", filepath.Base(path), "error", err)
		res.reason = ReasonUnreadableImage
		return res, nil
	}
	res.record = coco.ImageRecord{FileName: filepath.Base(path), Width: width, Height: height}

	categories := documentCategories(r.cfg)
	for _, maskPath := range masks {
		category, ok := pairing.Category(maskPath, categories)
		if !ok {
			res.reason = ReasonNoCategory
			logger.Warn("mask rejected", "mask", filepath.Base(maskPath), "reason", res.reason)
			return res, nil
		}
		m, err := mask.Load(maskPath, uint8(r.cfg.Encode.Threshold))
		if err != nil {
			res.reason = ReasonUnreadableMask
			logger.Warn("mask rejected", "mask", filepath.Base(maskPath), "reason", res.reason, "error", err)
			return res, nil
		}
		out := mask.Encode(mask.EncodeRequest{
			CategoryID:  category.ID,
			Crowd:       pairing.IsCrowd(r.cfg.Encode.CrowdMarker, path, maskPath),
			Regions:     []*mask.Mask{m},
			Width:       width,
			Height:      height,
			Tolerance:   r.cfg.Encode.Tolerance,
			CompressRLE: r.cfg.Encode.CompressCrowdRLE,
		})
		if out.Rejected {
			res.reason = out.Reason
			logger.Warn("mask rejected", "mask", filepath.Base(maskPath), "reason", res.reason)
			return res, nil
		}
		res.anns = append(res.anns, out.Annotation)
	}
	if len(masks) == 0 {
		logger.Debug("image has no masks", "image", filepath.Base(path))
	}
	return res, nil
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func (r *Runner) documentInfo() coco.Info {
	info := r.cfg.Info
	return coco.Info{
		Description: info.Description,
		URL:         info.URL,
		Version:     info.Version,
		Year:        info.Year,
		Contributor: info.Contributor,
		DateCreated: r.now().UTC().Format("2006/01/02"),
	}
}

func documentLicenses(cfg *config.Config) []coco.License {
	out := make([]coco.License, 0, len(cfg.Licenses))
	for _, l := range cfg.Licenses {
		out = append(out, coco.License{ID: l.ID, Name: l.Name, URL: l.URL})
	}
	return out
}

func documentCategories(cfg *config.Config) []coco.Category {
	out := make([]coco.Category, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		out = append(out, coco.Category{ID: c.ID, Name: c.Name, Supercategory: c.Supercategory})
	}
	return out
}

// lazyQuarantine creates the quarantine directory and its ledger on first
// use, so clean runs leave the dataset root untouched.
type lazyQuarantine struct {
	handler quarantine.Handler
	logger  *slog.Logger
	opened  bool
}

func (q *lazyQuarantine) move(ctx context.Context, reason string, paths []string) []error {
	if !q.opened {
		q.opened = true
		if err := q.handler.Ensure(); err != nil {
			return []error{err}
		}
		ledger, err := quarantine.OpenLedger(quarantine.LedgerPath(q.handler.Dir))
		if err != nil {
			q.logger.Warn("quarantine ledger unavailable", "error", err)
		} else {
			q.handler.Ledger = ledger
		}
	}
	return q.handler.Quarantine(ctx, reason, paths...)
}

func (q *lazyQuarantine) close() {
	if q.handler.Ledger != nil {
		_ = q.handler.Ledger.Close()
	}
}
