package scanner

import (
	"context"
	"fmt"

	"github.com/hazyhaar/promptnav/platform"
)

// handleSettled runs once the page has been quiet for the settle delay
// after a URL change (or after Start). The platform may differ on the new
// URL, so change observation is moved to the new container before a full
// scan with an empty identity cache.
func (s *Scanner) handleSettled(ctx context.Context) {
	loc, err := s.doc.Location(ctx)
	if err != nil {
		s.logger.Warn("scanner: location after settle", "error", err)
	} else {
		if err := s.subscribe(ctx, loc.Hostname); err != nil {
			s.logger.Warn("scanner: resubscribe failed", "host", loc.Hostname, "error", err)
		}
	}
	clear(s.cache)
	s.scan(ctx)
}

// subscribe observes the container of the record matching host, replacing
// the previous subscription when the container changed. Unknown platforms
// observe the whole document so a later navigation inside the page is
// still seen.
func (s *Scanner) subscribe(ctx context.Context, host string) error {
	p, container := platform.Unknown, ""
	if pc, ok := s.cfg.Registry.Match(host); ok {
		p, container = pc.Name, pc.ContainerSelector
	}
	if s.changeSub != nil && container == s.container {
		return nil
	}
	s.unsubscribe()

	sub, err := s.doc.Observe(ctx, container, s.onChange)
	if err != nil {
		return fmt.Errorf("scanner: observe %q: %w", container, err)
	}
	s.changeSub = sub
	s.container = container
	s.logger.Debug("scanner: observing", "platform", p, "container", container)
	return nil
}

func (s *Scanner) unsubscribe() {
	if s.changeSub == nil {
		return
	}
	if err := s.changeSub.Close(); err != nil {
		s.logger.Debug("scanner: close change subscription", "error", err)
	}
	s.changeSub = nil
	s.container = ""
}
