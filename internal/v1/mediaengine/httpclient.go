package mediaengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nullcaster/videoroom-gateway/internal/v1/metrics"
	"github.com/sony/gobreaker"
)

// HTTPClient is the production Engine adapter: every call above is an
// RPC over plain HTTP/JSON against the media engine process, guarded by a
// circuit breaker and instrumented with Prometheus metrics, the same shape
// the codebase already uses for its other out-of-process RPC boundary.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
	cb      *gobreaker.CircuitBreaker
}

func NewHTTPClient(baseURL string) *HTTPClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "media-engine",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("media-engine").Set(stateVal)
		},
	})
	return &HTTPClient{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 10 * time.Second},
		cb:      cb,
	}
}

type callRefImpl struct{ ID string }

func (callRefImpl) callRef() {}

type monologueRefImpl struct{ ID string }

func (monologueRefImpl) monologueRef() {}

type mediaSectionRefImpl struct {
	Index int
	Ufrag string
}

func (mediaSectionRefImpl) mediaSectionRef() {}
func (r mediaSectionRefImpl) SectionIndex() int    { return r.Index }
func (r mediaSectionRefImpl) SectionUfrag() string { return r.Ufrag }

type chopperImpl struct{ lastSDP SDPDoc }

func (chopperImpl) sdpChopper() {}

// do executes op under the circuit breaker, translating a tripped breaker
// and any transport-level failure into a generic media-engine error, so the
// videoroom state machine never special-cases transport failures (it only
// ever sees "the media engine failed"). method labels the call duration
// histogram so per-RPC latency is visible without a metric per method.
func (c *HTTPClient) do(ctx context.Context, method string, op func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	result, err := c.cb.Execute(op)
	metrics.MediaEngineCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("media-engine").Inc()
			return nil, fmt.Errorf("media engine unavailable: circuit breaker open")
		}
		return nil, fmt.Errorf("media engine call failed: %w", err)
	}
	return result, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpResp, err := c.hc.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode/100 != 2 {
		return fmt.Errorf("media engine returned status %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil
	}
	return json.NewDecoder(httpResp.Body).Decode(resp)
}

func (c *HTTPClient) CallGetOrCreate(ctx context.Context, callID string, mustBeNew bool) (CallRef, error) {
	_, err := c.do(ctx, "CallGetOrCreate", func() (interface{}, error) {
		return nil, c.postJSON(ctx, "/calls:getOrCreate", map[string]any{"call_id": callID, "must_be_new": mustBeNew}, nil)
	})
	if err != nil {
		return nil, err
	}
	return callRefImpl{ID: callID}, nil
}

func (c *HTTPClient) CallGet(ctx context.Context, callID string) (CallRef, error) {
	_, err := c.do(ctx, "CallGet", func() (interface{}, error) {
		return nil, c.postJSON(ctx, "/calls:get", map[string]any{"call_id": callID}, nil)
	})
	if err != nil {
		return nil, err
	}
	return callRefImpl{ID: callID}, nil
}

func (c *HTTPClient) CallDestroy(ctx context.Context, call CallRef) error {
	ref := call.(callRefImpl)
	_, err := c.do(ctx, "CallDestroy", func() (interface{}, error) {
		return nil, c.postJSON(ctx, "/calls:destroy", map[string]any{"call_id": ref.ID}, nil)
	})
	return err
}

func (c *HTTPClient) MonologueGet(ctx context.Context, call CallRef, monologueID string) (MonologueRef, bool, error) {
	var resp struct {
		Found bool `json:"found"`
	}
	ref := call.(callRefImpl)
	_, err := c.do(ctx, "MonologueGet", func() (interface{}, error) {
		return nil, c.postJSON(ctx, "/monologues:get", map[string]any{"call_id": ref.ID, "monologue_id": monologueID}, &resp)
	})
	if err != nil {
		return nil, false, err
	}
	if !resp.Found {
		return nil, false, nil
	}
	return monologueRefImpl{ID: monologueID}, true, nil
}

func (c *HTTPClient) MonologueGetOrCreate(ctx context.Context, call CallRef, monologueID string) (MonologueRef, error) {
	ref := call.(callRefImpl)
	_, err := c.do(ctx, "MonologueGetOrCreate", func() (interface{}, error) {
		return nil, c.postJSON(ctx, "/monologues:getOrCreate", map[string]any{"call_id": ref.ID, "monologue_id": monologueID}, nil)
	})
	if err != nil {
		return nil, err
	}
	return monologueRefImpl{ID: monologueID}, nil
}

func (c *HTTPClient) Publish(ctx context.Context, ml MonologueRef, streams []MediaStream, flags NgFlags) error {
	ref := ml.(monologueRefImpl)
	_, err := c.do(ctx, "Publish", func() (interface{}, error) {
		return nil, c.postJSON(ctx, "/monologues:publish", map[string]any{"monologue_id": ref.ID, "streams": streams}, nil)
	})
	return err
}

func (c *HTTPClient) SubscribeRequest(ctx context.Context, source, dest MonologueRef, flags NgFlags) error {
	s, d := source.(monologueRefImpl), dest.(monologueRefImpl)
	_, err := c.do(ctx, "SubscribeRequest", func() (interface{}, error) {
		return nil, c.postJSON(ctx, "/monologues:subscribeRequest", map[string]any{"source": s.ID, "dest": d.ID}, nil)
	})
	return err
}

func (c *HTTPClient) SubscribeAnswer(ctx context.Context, source, dest MonologueRef, flags NgFlags, streams []MediaStream) error {
	s, d := source.(monologueRefImpl), dest.(monologueRefImpl)
	_, err := c.do(ctx, "SubscribeAnswer", func() (interface{}, error) {
		return nil, c.postJSON(ctx, "/monologues:subscribeAnswer", map[string]any{"source": s.ID, "dest": d.ID, "streams": streams}, nil)
	})
	return err
}

func (c *HTTPClient) SDPParse(raw string) (SDPDoc, error) {
	if raw == "" {
		return SDPDoc{}, fmt.Errorf("empty sdp")
	}
	return SDPDoc{Raw: raw}, nil
}

func (c *HTTPClient) SDPStreams(doc SDPDoc) ([]MediaStream, error) {
	var resp struct {
		Streams []MediaStream `json:"streams"`
	}
	err := c.postJSON(context.Background(), "/sdp:streams", map[string]any{"sdp": doc.Raw}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Streams, nil
}

func (c *HTTPClient) SDPCreate(ctx context.Context, ml MonologueRef, flags NgFlags) (string, error) {
	ref := ml.(monologueRefImpl)
	var resp struct {
		SDP string `json:"sdp"`
	}
	_, err := c.do(ctx, "SDPCreate", func() (interface{}, error) {
		return nil, c.postJSON(ctx, "/sdp:create", map[string]any{"monologue_id": ref.ID}, &resp)
	})
	if err != nil {
		return "", err
	}
	return resp.SDP, nil
}

func (c *HTTPClient) SDPReplace(ctx context.Context, chopper SDPChopper, lastSDP SDPDoc, dest MonologueRef, flags NgFlags) (string, error) {
	d := dest.(monologueRefImpl)
	var resp struct {
		SDP string `json:"sdp"`
	}
	_, err := c.do(ctx, "SDPReplace", func() (interface{}, error) {
		return nil, c.postJSON(ctx, "/sdp:replace", map[string]any{"last_sdp": lastSDP.Raw, "dest": d.ID}, &resp)
	})
	if err != nil {
		return "", err
	}
	return resp.SDP, nil
}

func (c *HTTPClient) NewChopper(lastSDP SDPDoc) SDPChopper {
	return chopperImpl{lastSDP: lastSDP}
}

func (c *HTTPClient) SaveLastSDP(ml MonologueRef, doc SDPDoc) {
	ref := ml.(monologueRefImpl)
	_ = c.postJSON(context.Background(), "/monologues:saveLastSDP", map[string]any{"monologue_id": ref.ID, "sdp": doc.Raw}, nil)
}

func (c *HTTPClient) ICEUpdate(ctx context.Context, media MediaSectionRef, params StreamParams) error {
	ref := media.(mediaSectionRefImpl)
	_, err := c.do(ctx, "ICEUpdate", func() (interface{}, error) {
		return nil, c.postJSON(ctx, "/ice:update", map[string]any{"index": ref.Index, "ufrag": ref.Ufrag, "params": params}, nil)
	})
	return err
}

func (c *HTTPClient) FindMedia(ml MonologueRef, sdpMid string, sdpMLineIndex int) (MediaSectionRef, bool) {
	ref := ml.(monologueRefImpl)
	var resp struct {
		Found bool   `json:"found"`
		Index int    `json:"index"`
		Ufrag string `json:"ufrag"`
	}
	err := c.postJSON(context.Background(), "/monologues:findMedia", map[string]any{
		"monologue_id":    ref.ID,
		"sdp_mid":         sdpMid,
		"sdp_mline_index": sdpMLineIndex,
	}, &resp)
	if err != nil || !resp.Found {
		return nil, false
	}
	return mediaSectionRefImpl{Index: resp.Index, Ufrag: resp.Ufrag}, true
}
