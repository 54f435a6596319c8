// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"errors"
	"sync"
)

// ErrNoMoreReplies is returned by FakePrompter once its replies run out.
var ErrNoMoreReplies = errors.New("fake prompter: no more replies")

// FakePrompter answers password prompts from a fixed list and records the
// prompts it was asked. It satisfies protect.Prompter.
type FakePrompter struct {
	mu      sync.Mutex
	replies []string
	prompts []string
}

// NewFakePrompter returns a prompter that answers with replies in order.
func NewFakePrompter(replies ...string) *FakePrompter {
	return &FakePrompter{replies: replies}
}

// Password returns the next reply.
func (p *FakePrompter) Password(_ context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	if len(p.replies) == 0 {
		return "", ErrNoMoreReplies
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r, nil
}

// Calls returns how many prompts were asked.
func (p *FakePrompter) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

// Prompts returns the prompts asked so far.
func (p *FakePrompter) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}
