// Package breach answers whether an email address appears in known data
// breaches, chaining a full breach-directory lookup with a k-anonymity
// hash-range fallback for deployments without a directory credential.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Record is a single breach entry, genuine or synthesized. Diagnostic
// conditions (rate limiting, timeouts) ride in the same shape so the
// orchestrator always hands back one result type.
type Record struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// Result is the normalized outcome of a breach lookup.
//
// Known limitation: the k-anonymity fallback answers a narrower question
// ("has this email's hash been seen in a compromised-password corpus")
// than the directory lookup ("has this email appeared in a named
// breach"), yet both produce this same shape. Callers cannot tell the
// two apart except by the synthesized "Hash Match" record name.
type Result struct {
	Email       string   `json:"email"`
	Breached    bool     `json:"breached"`
	BreachCount int      `json:"breach_count"`
	Breaches    []Record `json:"breaches"`
}

// Options configures the Checker. Zero values get production defaults.
type Options struct {
	DirectoryURL string // breach-directory endpoint, queried by exact email
	RangeURL     string // k-anonymity hash-range endpoint, queried by SHA-1 prefix
	UserAgent    string // the directory rejects requests without one
	APIKey       string // optional directory credential

	DirectoryTimeout time.Duration
	RangeTimeout     time.Duration
}

// Checker performs the lookup chain.
type Checker struct {
	opts   Options
	client *http.Client
}

// New creates a Checker with defaults applied.
func New(opts Options) *Checker {
	if opts.DirectoryURL == "" {
		opts.DirectoryURL = "https://haveibeenpwned.com/api/v3/breachedaccount/"
	}
	if opts.RangeURL == "" {
		opts.RangeURL = "https://api.pwnedpasswords.com/range/"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "PageGuard-Security-Extension"
	}
	if opts.DirectoryTimeout <= 0 {
		opts.DirectoryTimeout = 15 * time.Second
	}
	if opts.RangeTimeout <= 0 {
		opts.RangeTimeout = 10 * time.Second
	}
	return &Checker{
		opts:   opts,
		client: &http.Client{},
	}
}

// directoryBreach is the subset of the directory's breach object we keep.
type directoryBreach struct {
	Name       string `json:"Name"`
	BreachDate string `json:"BreachDate"`
}

// Lookup runs the chain for email and always produces a Result; failure
// modes become synthesized diagnostic records rather than errors. The
// email is normalized first so case and whitespace never influence the
// directory query or the hash.
func (c *Checker) Lookup(ctx context.Context, email string) Result {
	email = strings.ToLower(strings.TrimSpace(email))

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.DirectoryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.opts.DirectoryURL+email, nil)
	if err != nil {
		return diagnostic(email, "Error", err.Error())
	}
	q := req.URL.Query()
	q.Set("truncateResponse", "true")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("hibp-api-key", c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return diagnostic(email, "Timeout", "Breach directory request timed out.")
		}
		return diagnostic(email, "Error", err.Error())
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		// Conclusively absent from every indexed breach.
		return clean(email)

	case http.StatusOK:
		var entries []directoryBreach
		if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
			return diagnostic(email, "Error", fmt.Sprintf("decode breach directory response: %v", err))
		}
		records := make([]Record, 0, len(entries))
		for _, e := range entries {
			records = append(records, Record{Name: e.Name, Date: e.BreachDate})
		}
		return Result{
			Email:       email,
			Breached:    true,
			BreachCount: len(records),
			Breaches:    records,
		}

	case http.StatusUnauthorized:
		// This deployment has no directory credential; fall back to the
		// credential-free hash-range check.
		return c.rangeFallback(ctx, email)

	case http.StatusTooManyRequests:
		return diagnostic(email, "Rate Limited", "Too many requests. Try again later.")

	default:
		// Ambiguous but non-fatal.
		return clean(email)
	}
}

// rangeFallback checks the email's SHA-1 against the hash-range endpoint.
// Only the first 5 hex characters leave the process; the suffix match
// happens locally.
func (c *Checker) rangeFallback(ctx context.Context, email string) Result {
	sum := sha1.Sum([]byte(email))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RangeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.opts.RangeURL+prefix, nil)
	if err != nil {
		return clean(email)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return clean(email)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return clean(email)
	}

	scanner := bufio.NewScanner(io.LimitReader(resp.Body, 4*1024*1024))
	for scanner.Scan() {
		parts := strings.Split(strings.TrimSpace(scanner.Text()), ":")
		if len(parts) != 2 || parts[0] != suffix {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return clean(email)
		}
		return Result{
			Email:       email,
			Breached:    true,
			BreachCount: count,
			Breaches: []Record{{
				Name:        "Hash Match",
				Description: fmt.Sprintf("Email hash found %d time(s) in breach databases.", count),
			}},
		}
	}

	return clean(email)
}

func clean(email string) Result {
	return Result{
		Email:       email,
		Breached:    false,
		BreachCount: 0,
		Breaches:    []Record{},
	}
}

func diagnostic(email, name, description string) Result {
	return Result{
		Email:       email,
		Breached:    false,
		BreachCount: 0,
		Breaches:    []Record{{Name: name, Description: description}},
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
