package aidefense

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"sort"
	"strings"
)

// HTTPReq describes the request half of an HTTP exchange submitted for
// inspection. Body holds the raw bytes; the client base64-encodes them on the
// wire exactly once.
type HTTPReq struct {
	// Method is the HTTP method of the original request.
	Method string
	// Headers of the original request.
	Headers map[string]string
	// Body of the original request, unencoded.
	Body []byte
	// Split marks the body as one fragment of a larger stream.
	Split bool
	// Last marks the final fragment of a split body.
	Last bool
}

// HTTPRes describes the response half of an HTTP exchange submitted for
// inspection.
type HTTPRes struct {
	// StatusCode of the original response. Zero means 200.
	StatusCode int
	// StatusString is the status line text, for example "200 OK".
	StatusString string
	// Headers of the original response.
	Headers map[string]string
	// Body of the original response, unencoded.
	Body []byte
	// Split marks the body as one fragment of a larger stream.
	Split bool
	// Last marks the final fragment of a split body.
	Last bool
}

// HTTPMeta carries the transaction context the service needs alongside the
// exchange itself.
type HTTPMeta struct {
	// URL of the original transaction. Required.
	URL string
	// Protocol version, for example "HTTP/1.1".
	Protocol string
}

// HTTPInspectRequest is the full inspection envelope: a request, a response,
// or both sides of one exchange. Submitting both lets the service reason
// about contextual leakage, such as PII that appears only in the response.
type HTTPInspectRequest struct {
	Req  *HTTPReq
	Res  *HTTPRes
	Meta HTTPMeta
}

type wireHeaderKV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type wireHeaders struct {
	HdrKvs []wireHeaderKV `json:"hdrKvs,omitempty"`
}

type wireHTTPReq struct {
	Method  string       `json:"method,omitempty"`
	Headers *wireHeaders `json:"headers,omitempty"`
	Body    string       `json:"body"`
	Split   bool         `json:"split,omitempty"`
	Last    bool         `json:"last,omitempty"`
}

type wireHTTPRes struct {
	StatusCode   int          `json:"statusCode"`
	StatusString string       `json:"statusString,omitempty"`
	Headers      *wireHeaders `json:"headers,omitempty"`
	Body         string       `json:"body"`
	Split        bool         `json:"split,omitempty"`
	Last         bool         `json:"last,omitempty"`
}

type wireHTTPMeta struct {
	URL      string `json:"url"`
	Protocol string `json:"protocol,omitempty"`
}

// httpInspectRequest is the wire shape of an HTTP inspection call.
type httpInspectRequest struct {
	HTTPReq  *wireHTTPReq      `json:"http_req,omitempty"`
	HTTPRes  *wireHTTPRes      `json:"http_res,omitempty"`
	HTTPMeta *wireHTTPMeta     `json:"http_meta,omitempty"`
	Metadata *Metadata         `json:"metadata,omitempty"`
	Config   *InspectionConfig `json:"config,omitempty"`
}

// headersToWire renders a header map as the wire's key-value list. Keys are
// sorted so the same headers always produce the same bytes.
func headersToWire(h map[string]string) *wireHeaders {
	if len(h) == 0 {
		return nil
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]wireHeaderKV, 0, len(h))
	for _, k := range keys {
		kvs = append(kvs, wireHeaderKV{Key: k, Value: h[k]})
	}
	return &wireHeaders{HdrKvs: kvs}
}

func (r *HTTPReq) toWire() (*wireHTTPReq, error) {
	method, err := validateMethod(r.Method)
	if err != nil {
		return nil, err
	}
	return &wireHTTPReq{
		Method:  method,
		Headers: headersToWire(r.Headers),
		Body:    base64.StdEncoding.EncodeToString(r.Body),
		Split:   r.Split,
		Last:    r.Last,
	}, nil
}

func (r *HTTPRes) toWire() (*wireHTTPRes, error) {
	code := r.StatusCode
	if code == 0 {
		code = http.StatusOK
	}
	if code < 100 || code > 599 {
		return nil, validationErr("status_code", "%d is not a valid HTTP status code", code)
	}
	return &wireHTTPRes{
		StatusCode:   code,
		StatusString: r.StatusString,
		Headers:      headersToWire(r.Headers),
		Body:         base64.StdEncoding.EncodeToString(r.Body),
		Split:        r.Split,
		Last:         r.Last,
	}, nil
}

// HTTPClient inspects HTTP transactions flowing to or from an AI application:
// API calls carrying prompts to a model provider, responses coming back, or
// any exchange whose bodies should be checked before they cross a boundary.
type HTTPClient struct {
	*inspectClient
}

// NewHTTPClient creates a client for the HTTP inspection endpoint.
//
//	client, err := aidefense.NewHTTPClient(
//		aidefense.WithAPIKey(key),
//	)
func NewHTTPClient(options ...Option) (*HTTPClient, error) {
	ic, err := newInspectClient(httpInspectPath, options)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{inspectClient: ic}, nil
}

// InspectRequest inspects an outbound HTTP request. body may be a string, a
// byte slice, or any JSON-serializable value; it is normalized and encoded by
// the client.
func (c *HTTPClient) InspectRequest(ctx context.Context, method, url string, headers map[string]string, body any, opts InspectOptions) (*InspectResult, error) {
	raw, err := payloadBytes("body", body)
	if err != nil {
		return nil, err
	}
	return c.Inspect(ctx, &HTTPInspectRequest{
		Req:  &HTTPReq{Method: method, Headers: headers, Body: raw},
		Meta: HTTPMeta{URL: url},
	}, opts)
}

// InspectResponse inspects an HTTP response received from an AI application
// or model provider. A statusCode of zero means 200.
func (c *HTTPClient) InspectResponse(ctx context.Context, statusCode int, url string, headers map[string]string, body any, opts InspectOptions) (*InspectResult, error) {
	raw, err := payloadBytes("body", body)
	if err != nil {
		return nil, err
	}
	return c.Inspect(ctx, &HTTPInspectRequest{
		Res:  &HTTPRes{StatusCode: statusCode, Headers: headers, Body: raw},
		Meta: HTTPMeta{URL: url},
	}, opts)
}

// Inspect submits a fully specified exchange. This is the way to inspect a
// response together with the request that produced it, or to control the
// split/last framing for streamed bodies. At least one of Req and Res must be
// set and Meta.URL is required.
func (c *HTTPClient) Inspect(ctx context.Context, req *HTTPInspectRequest, opts InspectOptions) (*InspectResult, error) {
	if req == nil || (req.Req == nil && req.Res == nil) {
		return nil, validationErr("request", "at least one of Req and Res is required")
	}
	if err := validateURL("url", req.Meta.URL); err != nil {
		return nil, err
	}

	wire := &httpInspectRequest{
		HTTPMeta: &wireHTTPMeta{URL: req.Meta.URL, Protocol: req.Meta.Protocol},
		Metadata: opts.Metadata,
		Config:   opts.Config,
	}

	var err error
	if req.Req != nil {
		if wire.HTTPReq, err = req.Req.toWire(); err != nil {
			return nil, err
		}
	}
	if req.Res != nil {
		if wire.HTTPRes, err = req.Res.toWire(); err != nil {
			return nil, err
		}
	}

	return c.doInspect(ctx, wire, opts)
}

// InspectRequestFrom inspects a request already built for net/http. The
// request body, if any, is read and restored so the request can still be
// sent afterwards.
func (c *HTTPClient) InspectRequestFrom(ctx context.Context, req *http.Request, opts InspectOptions) (*InspectResult, error) {
	if req == nil {
		return nil, validationErr("request", "request is required")
	}
	if req.URL == nil {
		return nil, validationErr("request", "request has no URL")
	}

	hreq, err := fromHTTPRequest(req)
	if err != nil {
		return nil, err
	}

	return c.Inspect(ctx, &HTTPInspectRequest{
		Req:  hreq,
		Meta: HTTPMeta{URL: req.URL.String(), Protocol: req.Proto},
	}, opts)
}

// InspectResponseFrom inspects a response received via net/http. The
// originating request is embedded automatically when the response carries
// one, so the service sees both sides of the exchange. The response body is
// read and restored so the caller can still consume it.
func (c *HTTPClient) InspectResponseFrom(ctx context.Context, resp *http.Response, opts InspectOptions) (*InspectResult, error) {
	if resp == nil {
		return nil, validationErr("response", "response is required")
	}
	if resp.Request == nil || resp.Request.URL == nil {
		return nil, validationErr("response", "response has no associated request URL")
	}

	body, err := readAndRestore(&resp.Body)
	if err != nil {
		return nil, validationErr("response", "cannot read response body: %v", err)
	}

	envelope := &HTTPInspectRequest{
		Res: &HTTPRes{
			StatusCode:   resp.StatusCode,
			StatusString: resp.Status,
			Headers:      flattenHeader(resp.Header),
			Body:         body,
		},
		Meta: HTTPMeta{URL: resp.Request.URL.String(), Protocol: resp.Proto},
	}

	if req, err := fromHTTPRequest(resp.Request); err == nil {
		envelope.Req = req
	} else {
		c.logger.Debug().Err(err).Msg("inspecting response without its request: request body not readable")
	}

	return c.Inspect(ctx, envelope, opts)
}

// fromHTTPRequest captures a net/http request as an inspection payload. The
// body is recovered via GetBody when possible so the original reader is left
// alone; otherwise it is read and restored.
func fromHTTPRequest(req *http.Request) (*HTTPReq, error) {
	var body []byte
	var err error

	switch {
	case req.GetBody != nil:
		rc, gerr := req.GetBody()
		if gerr != nil {
			return nil, validationErr("request", "cannot read request body: %v", gerr)
		}
		body, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, validationErr("request", "cannot read request body: %v", err)
		}
	case req.Body != nil:
		if body, err = readAndRestore(&req.Body); err != nil {
			return nil, validationErr("request", "cannot read request body: %v", err)
		}
	}

	return &HTTPReq{
		Method:  req.Method,
		Headers: flattenHeader(req.Header),
		Body:    body,
	}, nil
}

// readAndRestore drains a body and replaces it with a fresh reader over the
// same bytes.
func readAndRestore(body *io.ReadCloser) ([]byte, error) {
	if *body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(*body)
	if err != nil {
		return nil, err
	}
	(*body).Close()
	*body = io.NopCloser(bytes.NewReader(raw))
	return raw, nil
}

// flattenHeader joins multi-valued headers the way they appear on the wire.
func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, vals := range h {
		out[k] = strings.Join(vals, ", ")
	}
	return out
}
