// Package midpoint implements the IdentityStore port against the midPoint
// model web service (SOAP 1.1 over HTTP).
package midpoint

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/port/driven"
)

// DefaultEndpoint is the model web service of a local midPoint installation.
const DefaultEndpoint = "http://localhost:8080/midpoint/model/model-1"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// defaultHTTPClient is the base client for production use. The timeout is a
// safety net; individual calls also honor context cancellation.
var defaultHTTPClient = &http.Client{Timeout: 60 * time.Second}

// Credentials are the decrypted midPoint administrator credentials.
type Credentials struct {
	Username string
	Password string
}

// RemoteError reports a SOAP fault or an unexpected HTTP response.
type RemoteError struct {
	Operation  string
	StatusCode int
	FaultCode  string
	Message    string
}

func (e *RemoteError) Error() string {
	if e.FaultCode != "" {
		return fmt.Sprintf("%s: soap fault %s: %s", e.Operation, e.FaultCode, e.Message)
	}
	return fmt.Sprintf("%s: unexpected http status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Compile-time interface satisfaction check.
var _ driven.IdentityStore = (*Client)(nil)

// Client implements driven.IdentityStore. Every request carries the admin
// credentials twice: HTTP Basic auth on the channel and a WS-Security header
// added by the interceptor chain.
type Client struct {
	http         *http.Client
	endpoint     string
	interceptors []RequestInterceptor
}

// NewClient creates a client for DefaultEndpoint with the transport stack:
//  1. http.DefaultTransport
//  2. basicAuthTransport (channel credentials)
//  3. SecurityHeaderInterceptor (message credentials)
func NewClient(creds Credentials, extra ...RequestInterceptor) *Client {
	return newClient(defaultHTTPClient, DefaultEndpoint, creds, extra)
}

// NewClientWithEndpoint creates a client for endpoint. A nil httpClient
// selects the production default; tests inject an httptest client.
func NewClientWithEndpoint(httpClient *http.Client, endpoint string, creds Credentials, extra ...RequestInterceptor) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint URL %q must use http or https", endpoint)
	}
	if httpClient == nil {
		httpClient = defaultHTTPClient
	}
	return newClient(httpClient, u.String(), creds, extra), nil
}

func newClient(hc *http.Client, endpoint string, creds Credentials, extra []RequestInterceptor) *Client {
	interceptors := make([]RequestInterceptor, 0, len(extra)+1)
	interceptors = append(interceptors, NewSecurityHeaderInterceptor(creds))
	interceptors = append(interceptors, extra...)

	return &Client{
		http:         withBasicAuth(hc, creds),
		endpoint:     endpoint,
		interceptors: interceptors,
	}
}

// Endpoint returns the model web service URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SearchUserByName looks up the user whose name equals name.
func (c *Client) SearchUserByName(ctx context.Context, name string) (*model.Identity, error) {
	req := &searchObjectsRequest{
		ObjectType: userTypeURI,
		Query:      newNameEqualQuery(name),
	}

	resp, err := c.call(ctx, "searchObjects", req)
	if err != nil {
		return nil, err
	}
	if resp.Body.SearchObjects == nil {
		return nil, &RemoteError{Operation: "searchObjects", StatusCode: http.StatusOK, Message: "response has no searchObjectsResponse"}
	}

	objects := resp.Body.SearchObjects.ObjectList.Objects
	switch len(objects) {
	case 0:
		return nil, driven.ErrUserNotFound
	case 1:
		return &model.Identity{OID: objects[0].OID, Name: objects[0].Name}, nil
	default:
		return nil, &driven.AmbiguousUserError{Name: name, Matches: len(objects)}
	}
}

// ChangeUserPassword replaces the password of identity with plaintext and
// returns midPoint's operation result status.
func (c *Client) ChangeUserPassword(ctx context.Context, identity model.Identity, plaintext string) (string, error) {
	if identity.OID == "" {
		return "", errors.New("change password: identity has no oid")
	}

	change := model.PasswordChange{OID: identity.OID, Path: passwordPath, Value: plaintext}
	req := &modifyObjectRequest{
		ObjectType: userTypeURI,
		ObjectChange: objectModification{
			OID: change.OID,
			Modification: []itemDelta{{
				ModificationType: "replace",
				Path:             newPathDeclaration(change.Path),
				Value:            deltaValue{ClearValue: change.Value},
			}},
		},
	}

	resp, err := c.call(ctx, "modifyObject", req)
	if err != nil {
		return "", err
	}
	if resp.Body.ModifyObject == nil {
		return "", &RemoteError{Operation: "modifyObject", StatusCode: http.StatusOK, Message: "response has no modifyObjectResponse"}
	}

	status := resp.Body.ModifyObject.Result.Status
	slog.Debug("midpoint modifyObject result", "status", status, "oid", identity.OID)
	return status, nil
}

// call runs the interceptor chain, posts the envelope and decodes the reply.
func (c *Client) call(ctx context.Context, operation string, payload any) (*responseEnvelope, error) {
	env := &Envelope{Body: Body{Content: payload}}
	for _, ic := range c.interceptors {
		if err := ic.BeforeSend(env); err != nil {
			return nil, fmt.Errorf("%s: intercept request: %w", operation, err)
		}
	}

	body, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal envelope: %w", operation, err)
	}
	body = append([]byte(xml.Header), body...)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", operation, err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", `"`+operation+`"`)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", operation, err)
	}

	var out responseEnvelope
	decodeErr := xml.Unmarshal(raw, &out)

	// SOAP 1.1 servers answer faults with HTTP 500, so check the fault first.
	if decodeErr == nil && out.Body.Fault != nil {
		return nil, &RemoteError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			FaultCode:  out.Body.Fault.Code,
			Message:    out.Body.Fault.String,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Operation: operation, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s: decode response: %w", operation, decodeErr)
	}

	return &out, nil
}
