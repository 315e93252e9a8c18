package collab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Crys266/IoT-Project/internal/bus"
	"github.com/Crys266/IoT-Project/internal/clock"
	"github.com/Crys266/IoT-Project/internal/model"
)

// Reporter shows status lines.
type Reporter interface {
	Report(message string, sev model.Severity)
}

// Publisher receives gallery summaries. It may be nil.
type Publisher interface {
	Publish(topic string, msg any)
}

// Service runs gallery actions and reports every outcome on the status line.
type Service struct {
	client *Client
	cache  *Cache
	status Reporter
	events Publisher
	clock  clock.Clock
	logger *slog.Logger
}

// NewService wires a client to the status line. cache and events may be nil.
func NewService(client *Client, cache *Cache, status Reporter, events Publisher, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, cache: cache, status: status, events: events, clock: clk, logger: logger}
}

// LoadGallery fetches the gallery, caches it and publishes a summary.
func (s *Service) LoadGallery(ctx context.Context) (Gallery, error) {
	s.status.Report("Loading image gallery...", model.SeverityInfo)
	g, err := s.refresh(ctx)
	if err != nil {
		s.logger.Warn("load gallery", "error", err)
		s.status.Report("Error loading images", model.SeverityError)
		return Gallery{}, err
	}
	s.status.Report(fmt.Sprintf("Gallery loaded: %d images", g.Statistics.TotalImages), model.SeveritySuccess)
	return g, nil
}

// Lookup returns a cached image by id.
func (s *Service) Lookup(id string) (Image, bool) {
	if s.cache == nil {
		return Image{}, false
	}
	img, ok, err := s.cache.Image(id)
	if err != nil {
		s.logger.Warn("cache lookup", "id", id, "error", err)
		return Image{}, false
	}
	return img, ok
}

// UpdateImage saves new metadata for id.
func (s *Service) UpdateImage(ctx context.Context, id string, u ImageUpdate) error {
	if err := s.client.UpdateImage(ctx, id, u); err != nil {
		s.fail("Update failed", "Update error", err)
		return err
	}
	s.status.Report("Image updated successfully", model.SeveritySuccess)
	s.refreshQuietly(ctx)
	return nil
}

// ClassifyImage runs object detection on id.
func (s *Service) ClassifyImage(ctx context.Context, id string) (int, error) {
	s.status.Report("Running object detection on image...", model.SeverityInfo)
	n, err := s.client.ClassifyImage(ctx, id)
	if err != nil {
		s.fail("Classification failed", "Classification error", err)
		return 0, err
	}
	s.status.Report(fmt.Sprintf("Classification complete: %d objects detected", n), model.SeveritySuccess)
	s.refreshQuietly(ctx)
	return n, nil
}

// SendImageTelegram forwards id to the Telegram bot.
func (s *Service) SendImageTelegram(ctx context.Context, id string) error {
	s.status.Report("Sending image via Telegram...", model.SeverityInfo)
	if err := s.client.SendImageTelegram(ctx, id); err != nil {
		s.fail("Telegram send failed", "Telegram error", err)
		return err
	}
	s.status.Report("Image sent via Telegram", model.SeveritySuccess)
	return nil
}

// DeleteImage removes id.
func (s *Service) DeleteImage(ctx context.Context, id string) error {
	s.status.Report("Deleting image...", model.SeverityWarning)
	if err := s.client.DeleteImage(ctx, id); err != nil {
		s.fail("Delete failed", "Delete error", err)
		return err
	}
	if s.cache != nil {
		if err := s.cache.RemoveImage(id); err != nil {
			s.logger.Warn("cache remove", "id", id, "error", err)
		}
	}
	s.status.Report("Image deleted", model.SeveritySuccess)
	return nil
}

// TestNotification sends a Telegram test message.
func (s *Service) TestNotification(ctx context.Context) error {
	if err := s.client.TestTelegram(ctx); err != nil {
		s.fail("Telegram test failed", "Telegram test error", err)
		return err
	}
	s.status.Report("Test notification sent via Telegram", model.SeveritySuccess)
	return nil
}

// Labels lists the detector classes.
func (s *Service) Labels(ctx context.Context) ([]string, error) {
	labels, err := s.client.Labels(ctx)
	if err != nil {
		s.status.Report("Error loading labels", model.SeverityError)
		return nil, err
	}
	return labels, nil
}

// DangerousClasses returns the alert classes, falling back to the cached copy
// when the service is unreachable.
func (s *Service) DangerousClasses(ctx context.Context) ([]string, error) {
	classes, err := s.client.DangerousClasses(ctx)
	if err == nil {
		if s.cache != nil {
			if cerr := s.cache.StoreClasses(classes); cerr != nil {
				s.logger.Warn("cache classes", "error", cerr)
			}
		}
		return classes, nil
	}
	if s.cache != nil {
		if cached, cerr := s.cache.Classes(); cerr == nil && cached != nil {
			s.logger.Warn("using cached alert classes", "error", err)
			return cached, nil
		}
	}
	s.status.Report("Error loading alert classes", model.SeverityError)
	return nil, err
}

// SetDangerousClasses replaces the alert classes.
func (s *Service) SetDangerousClasses(ctx context.Context, classes []string) error {
	if err := s.client.SetDangerousClasses(ctx, classes); err != nil {
		s.logger.Warn("save alert classes", "error", err)
		s.status.Report("Error saving", model.SeverityError)
		return err
	}
	if s.cache != nil {
		if err := s.cache.StoreClasses(classes); err != nil {
			s.logger.Warn("cache classes", "error", err)
		}
	}
	s.status.Report("Saved!", model.SeveritySuccess)
	return nil
}

func (s *Service) refresh(ctx context.Context) (Gallery, error) {
	g, err := s.client.ListImages(ctx)
	if err != nil {
		return Gallery{}, err
	}
	now := s.clock.Now()
	if s.cache != nil {
		if err := s.cache.StoreGallery(g, now); err != nil {
			s.logger.Warn("cache gallery", "error", err)
		}
	}
	if s.events != nil {
		s.events.Publish(bus.TopicGallery, g.Summarize(now))
	}
	return g, nil
}

// refreshQuietly updates the cache after a mutation without touching the status line.
func (s *Service) refreshQuietly(ctx context.Context) {
	if _, err := s.refresh(ctx); err != nil {
		s.logger.Debug("gallery refresh", "error", err)
	}
}

// fail reports err: a server refusal carries its reason, anything else is a transport error.
func (s *Service) fail(rejectedPrefix, errorPrefix string, err error) {
	var re *RejectedError
	if errors.As(err, &re) {
		reason := re.Reason
		if reason == "" {
			reason = "unknown error"
		}
		s.status.Report(rejectedPrefix+": "+reason, model.SeverityError)
		return
	}
	s.status.Report(errorPrefix+": "+err.Error(), model.SeverityError)
}

// Age returns how long ago the cached gallery was fetched, and false when nothing is cached.
func (s *Service) Age() (time.Duration, bool) {
	if s.cache == nil {
		return 0, false
	}
	_, at, ok, err := s.cache.Gallery()
	if err != nil || !ok {
		return 0, false
	}
	return s.clock.Now().Sub(at), true
}
