// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package webbrowser

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
)

// NewMockLauncher returns a Launcher that acts as a scripted browser for
// tests: it requests the URL and follows redirects, just far enough to
// complete a login against a stub platform that needs no user
// interaction.
//
// Requests run in the background, so that OpenURL returns before the
// redirect arrives just like with a real browser. Call Wait to block until
// they have finished.
func NewMockLauncher(ctx context.Context) *MockLauncher {
	return &MockLauncher{
		Client:  &http.Client{},
		Context: ctx,
	}
}

// MockLauncher is the Launcher returned by NewMockLauncher.
type MockLauncher struct {
	Client  *http.Client
	Context context.Context

	mu     sync.Mutex
	opened []string
	errs   []error
	wg     sync.WaitGroup
}

var _ Launcher = (*MockLauncher)(nil)

func (l *MockLauncher) OpenURL(u string) error {
	l.mu.Lock()
	l.opened = append(l.opened, u)
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.visit(u); err != nil {
			log.Printf("[ERROR] webbrowser.MockLauncher: %s", err)
			l.mu.Lock()
			l.errs = append(l.errs, err)
			l.mu.Unlock()
		}
	}()
	return nil
}

func (l *MockLauncher) visit(u string) error {
	req, err := http.NewRequestWithContext(l.Context, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", u, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %s", u, resp.Status)
	}
	return nil
}

// Wait blocks until every requested URL has been visited, and returns the
// first visit error if there was one.
func (l *MockLauncher) Wait() error {
	l.wg.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) > 0 {
		return l.errs[0]
	}
	return nil
}

// Opened returns the URLs given to OpenURL so far.
func (l *MockLauncher) Opened() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.opened...)
}
