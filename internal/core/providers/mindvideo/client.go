// Package mindvideo talks to the MindVideo asynchronous creation API.
package mindvideo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"mindgate/internal/core"
	"mindgate/internal/core/engine"
	"mindgate/internal/core/security"
	"mindgate/internal/metrics"
	"mindgate/internal/pkg/logger"
)

const (
	submitPath     = "/v2/creations"
	progressPath   = "/v2/creations/task_progress"
	signedURLPath  = "/images/signed-url"
	maxBodyBytes   = 4 << 20
	defaultSize    = "1280x720"
	defaultSeconds = 15
)

// Options configures the provider client
type Options struct {
	BaseURL   string
	AppKey    string
	Version   string
	Lang      string
	Origin    string
	Referer   string
	UserAgent string
	// VideoSeconds is the fixed duration of video jobs
	VideoSeconds int
	// VideoSize is used when a video request carries no resolution
	VideoSize  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logger.Logger
	Metrics    *metrics.Recorder
}

// Client issues signed submit and poll calls. It holds no per-task state.
type Client struct {
	opts     Options
	baseURL  string
	signer   *Signer
	registry *engine.Registry
	picker   CredentialPicker
	client   *http.Client
	scanner  *security.Scanner
	log      *logger.Logger
	metrics  *metrics.Recorder
}

// NewClient creates a provider client
func NewClient(opts Options, registry *engine.Registry, picker CredentialPicker) (*Client, error) {
	if registry == nil {
		return nil, fmt.Errorf("mindvideo: model registry is required")
	}
	if picker == nil {
		return nil, ErrNoCredentials
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("mindvideo: base url is required")
	}
	if opts.VideoSeconds <= 0 {
		opts.VideoSeconds = defaultSeconds
	}
	if opts.VideoSize == "" {
		opts.VideoSize = defaultSize
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		opts:     opts,
		baseURL:  baseURL,
		signer:   NewSigner(opts.AppKey),
		registry: registry,
		picker:   picker,
		client:   httpClient,
		scanner:  security.NewScanner(),
		log:      log.Named("mindvideo"),
		metrics:  opts.Metrics,
	}, nil
}

// Submit creates a provider task and binds it to the credential used
func (c *Client) Submit(ctx context.Context, req core.GenerationRequest) (handle core.TaskHandle, err error) {
	defer func() { c.observe("submit", err) }()

	modelKey, desc := c.registry.Resolve(req.ModelKey)
	cred, err := c.picker.Pick()
	if err != nil {
		return core.TaskHandle{}, err
	}

	payload, err := c.buildSubmitPayload(desc, req)
	if err != nil {
		return core.TaskHandle{}, err
	}

	raw, err := c.do(ctx, "submit", http.MethodPost, submitPath, nil, payload, cred)
	if err != nil {
		return core.TaskHandle{}, err
	}

	env, err := c.parseEnvelope("submit", raw)
	if err != nil {
		return core.TaskHandle{}, err
	}

	taskID := strings.TrimSpace(env.Get("data.id").String())
	if taskID == "" {
		return core.TaskHandle{}, core.NewBusinessError(int(env.Get("code").Int()), envelopeMessage(env, raw))
	}

	c.log.Debug("task submitted",
		zap.String("task_id", taskID),
		zap.String("model", modelKey),
		zap.Int("bot_id", desc.ProviderID),
	)
	return core.TaskHandle{TaskID: taskID, Credential: cred, ModelKey: modelKey}, nil
}

// Poll queries one task with the credential captured at submission
func (c *Client) Poll(ctx context.Context, handle core.TaskHandle) (snap core.TaskSnapshot, err error) {
	defer func() { c.observe("poll", err) }()

	query := url.Values{"ids[]": []string{handle.TaskID}}
	raw, err := c.do(ctx, "poll", http.MethodGet, progressPath, query, nil, handle.Credential)
	if err != nil {
		return core.TaskSnapshot{}, err
	}

	env, err := c.parseEnvelope("poll", raw)
	if err != nil {
		return core.TaskSnapshot{}, err
	}

	task, ok := selectTask(env.Get("data"), handle.TaskID)
	if !ok {
		// no data yet right after submission
		return core.TaskSnapshot{Status: core.StatusPending, Progress: 0}, nil
	}

	snap = core.TaskSnapshot{
		Status:   mapStatus(task.Get("task_status").String()),
		Progress: clampProgress(task.Get("task_progress").Int()),
	}

	switch snap.Status {
	case core.StatusCompleted:
		snap.ResultURL = resultURL(task)
		if snap.ResultURL == "" {
			return core.TaskSnapshot{}, core.NewProtocolError("poll: completed task carries no result url", []byte(task.Raw))
		}
		snap.Progress = 100
	case core.StatusFailed:
		snap.ErrorMessage = strings.TrimSpace(task.Get("task_remark").String())
		if snap.ErrorMessage == "" {
			snap.ErrorMessage = "Unknown error"
		}
	}
	return snap, nil
}

// SignUpload asks the provider for a signed upload URL and returns its envelope untouched
func (c *Client) SignUpload(ctx context.Context, filename string) ([]byte, error) {
	cred, err := c.picker.First()
	if err != nil {
		return nil, err
	}
	query := url.Values{
		"type":     []string{"image"},
		"filename": []string{filename},
		"path":     []string{"user-0"},
	}
	raw, err := c.do(ctx, "upload_sign", http.MethodPost, signedURLPath, query, nil, cred)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(raw) {
		return nil, c.protocolError("upload_sign: upstream returned non-JSON", raw)
	}
	return raw, nil
}

// buildSubmitPayload shapes the creation body for the model category
func (c *Client) buildSubmitPayload(desc core.ModelDescriptor, req core.GenerationRequest) ([]byte, error) {
	b := &payloadBuilder{body: []byte(`{}`)}
	b.set("type", desc.ProviderType)
	b.set("bot_id", desc.ProviderID)
	b.set("options.prompt", req.Prompt)
	b.setRaw("options.history_images", `[]`)

	switch desc.Category {
	case core.CategoryVideo:
		size := strings.TrimSpace(req.Options.Size)
		if size == "" {
			size = c.opts.VideoSize
		}
		b.set("options.size", size)
		b.set("options.seconds", c.opts.VideoSeconds)
		b.set("is_public", true)
		b.set("copy_protection", false)
	case core.CategoryImage:
		// primary image first, secondary as image_1, never more
		keys := []string{"options.image", "options.image_1"}
		n := 0
		for _, img := range req.Options.Images {
			if img = strings.TrimSpace(img); img == "" {
				continue
			}
			if n == core.MaxReferenceImages {
				break
			}
			b.set(keys[n], img)
			n++
		}
	}
	if b.err != nil {
		return nil, fmt.Errorf("mindvideo: build payload: %w", b.err)
	}
	return b.body, nil
}

// do sends one signed request and returns the raw body
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte, cred core.Credential) ([]byte, error) {
	sig, err := c.signer.Sign()
	if err != nil {
		return nil, fmt.Errorf("mindvideo: sign %s: %w", op, err)
	}
	signHeader, err := sig.Header()
	if err != nil {
		return nil, fmt.Errorf("mindvideo: sign %s: %w", op, err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("mindvideo: build %s request: %w", op, err)
	}
	for key, values := range c.buildHeaders(cred, signHeader) {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, core.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, core.NewTransportError(op, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Debug("upstream non-200",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
	}
	return raw, nil
}

// buildHeaders constructs the fixed browser-like headers plus auth and signature
func (c *Client) buildHeaders(cred core.Credential, signHeader string) http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+string(cred))
	h.Set("I-Sign", signHeader)
	if c.opts.Lang != "" {
		h.Set("I-Lang", c.opts.Lang)
	}
	if c.opts.Version != "" {
		h.Set("I-Version", c.opts.Version)
	}
	if c.opts.Origin != "" {
		h.Set("Origin", c.opts.Origin)
	}
	if c.opts.Referer != "" {
		h.Set("Referer", c.opts.Referer)
	}
	if c.opts.UserAgent != "" {
		h.Set("User-Agent", c.opts.UserAgent)
	}
	return h
}

// parseEnvelope validates the {code, message, data} envelope
func (c *Client) parseEnvelope(op string, raw []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, c.protocolError(op+": upstream returned non-JSON", raw)
	}
	env := gjson.ParseBytes(raw)
	if !env.IsObject() {
		return gjson.Result{}, c.protocolError(op+": upstream envelope is not an object", raw)
	}
	code := env.Get("code")
	if !code.Exists() || code.Int() != 0 {
		return gjson.Result{}, core.NewBusinessError(int(code.Int()), envelopeMessage(env, raw))
	}
	return env, nil
}

func (c *Client) protocolError(msg string, raw []byte) error {
	err := core.NewProtocolError(msg, raw)
	c.log.Warn("upstream protocol error",
		zap.String("reason", msg),
		zap.String("body", c.scanner.Sanitize(err.Body)),
	)
	return err
}

func (c *Client) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(core.KindOf(err))
	}
	c.metrics.ObserveUpstream(op, result)
}

func envelopeMessage(env gjson.Result, raw []byte) string {
	if msg := strings.TrimSpace(env.Get("message").String()); msg != "" {
		return msg
	}
	return core.BodyPrefix(raw)
}

// selectTask picks the entry for taskID from a task array, falling back to the first entry
func selectTask(data gjson.Result, taskID string) (gjson.Result, bool) {
	if data.IsObject() {
		return data, true
	}
	if !data.IsArray() {
		return gjson.Result{}, false
	}
	tasks := data.Array()
	if len(tasks) == 0 {
		return gjson.Result{}, false
	}
	for _, t := range tasks {
		if t.Get("id").String() == taskID {
			return t, true
		}
	}
	return tasks[0], true
}

// resultURL applies result_url > results cover_url > task cover_url
func resultURL(task gjson.Result) string {
	for _, path := range []string{"results.0.result_url", "results.0.cover_url", "cover_url"} {
		if u := strings.TrimSpace(task.Get(path).String()); u != "" {
			return u
		}
	}
	return ""
}

func mapStatus(s string) core.TaskStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "complete", "success", "succeeded", "finished":
		return core.StatusCompleted
	case "failed", "fail", "error", "cancelled", "canceled":
		return core.StatusFailed
	case "", "pending", "queued", "queue", "waiting", "created":
		return core.StatusPending
	default:
		return core.StatusRunning
	}
}

func clampProgress(p int64) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return int(p)
	}
}

// payloadBuilder keeps the first sjson error
type payloadBuilder struct {
	body []byte
	err  error
}

func (b *payloadBuilder) set(path string, value interface{}) {
	if b.err != nil {
		return
	}
	b.body, b.err = sjson.SetBytes(b.body, path, value)
}

func (b *payloadBuilder) setRaw(path, raw string) {
	if b.err != nil {
		return
	}
	b.body, b.err = sjson.SetRawBytes(b.body, path, []byte(raw))
}
