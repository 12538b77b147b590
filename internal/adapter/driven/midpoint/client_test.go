package midpoint_test

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/adapter/driven/midpoint"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/port/driven"
)

var testCreds = midpoint.Credentials{Username: "administrator", Password: "5ecr3t"}

type capturedRequest struct {
	Method     string
	SOAPAction string
	User       string
	Pass       string
	HasAuth    bool
	Body       string
}

// newServer starts a fake model web service that records every request and
// answers with respond.
func newServer(t *testing.T, respond func(w http.ResponseWriter, body string)) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		user, pass, ok := r.BasicAuth()
		captured = append(captured, capturedRequest{
			Method:     r.Method,
			SOAPAction: r.Header.Get("SOAPAction"),
			User:       user,
			Pass:       pass,
			HasAuth:    ok,
			Body:       string(raw),
		})
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		respond(w, string(raw))
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func newTestClient(t *testing.T, server *httptest.Server, extra ...midpoint.RequestInterceptor) *midpoint.Client {
	t.Helper()
	client, err := midpoint.NewClientWithEndpoint(server.Client(), server.URL+"/midpoint/model/model-1", testCreds, extra...)
	require.NoError(t, err)
	return client
}

func searchResponse(names ...string) string {
	var objects strings.Builder
	for i, name := range names {
		fmt.Fprintf(&objects, `<c:object xsi:type="c:UserType" oid="oid-%d" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"><c:name>%s</c:name></c:object>`, i+1, name)
	}
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"><S:Body>` +
		`<m:searchObjectsResponse xmlns:m="http://midpoint.evolveum.com/xml/ns/public/model/model-2" xmlns:c="http://midpoint.evolveum.com/xml/ns/public/common/common-2a">` +
		`<m:objectList>` + objects.String() + `</m:objectList>` +
		`<m:result><c:status>success</c:status></m:result>` +
		`</m:searchObjectsResponse></S:Body></S:Envelope>`
}

func modifyResponse(status string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"><S:Body>` +
		`<m:modifyObjectResponse xmlns:m="http://midpoint.evolveum.com/xml/ns/public/model/model-2" xmlns:c="http://midpoint.evolveum.com/xml/ns/public/common/common-2a">` +
		`<m:result><c:status>` + status + `</c:status></m:result>` +
		`</m:modifyObjectResponse></S:Body></S:Envelope>`
}

const faultResponse = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"><S:Body>` +
	`<S:Fault><faultcode>S:Server</faultcode><faultstring>Object not found</faultstring></S:Fault>` +
	`</S:Body></S:Envelope>`

func TestSearchUserByName_SingleMatch(t *testing.T) {
	server, captured := newServer(t, func(w http.ResponseWriter, _ string) {
		_, _ = io.WriteString(w, searchResponse("alice"))
	})
	client := newTestClient(t, server)

	identity, err := client.SearchUserByName(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, &model.Identity{OID: "oid-1", Name: "alice"}, identity)

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, `"searchObjects"`, req.SOAPAction)
}

func TestSearchUserByName_NotFound(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, _ string) {
		_, _ = io.WriteString(w, searchResponse())
	})
	client := newTestClient(t, server)

	identity, err := client.SearchUserByName(context.Background(), "nobody")
	assert.Nil(t, identity)
	assert.ErrorIs(t, err, driven.ErrUserNotFound)
}

func TestSearchUserByName_Ambiguous(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, _ string) {
		_, _ = io.WriteString(w, searchResponse("bob", "bob"))
	})
	client := newTestClient(t, server)

	identity, err := client.SearchUserByName(context.Background(), "bob")
	assert.Nil(t, identity)

	var ambiguous *driven.AmbiguousUserError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, "bob", ambiguous.Name)
	assert.Equal(t, 2, ambiguous.Matches)
}

func TestSearchUserByName_Fault(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, faultResponse)
	})
	client := newTestClient(t, server)

	_, err := client.SearchUserByName(context.Background(), "alice")

	var remote *midpoint.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "searchObjects", remote.Operation)
	assert.Equal(t, "S:Server", remote.FaultCode)
	assert.Equal(t, "Object not found", remote.Message)
	assert.Equal(t, http.StatusInternalServerError, remote.StatusCode)
}

func TestSearchUserByName_HTTPErrorWithoutFault(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client := newTestClient(t, server)

	_, err := client.SearchUserByName(context.Background(), "alice")

	var remote *midpoint.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
}

func TestSearchUserByName_TransportError(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, _ string) {})
	client := newTestClient(t, server)
	server.Close()

	_, err := client.SearchUserByName(context.Background(), "alice")
	require.Error(t, err)
}

func TestChangeUserPassword_ReturnsStatus(t *testing.T) {
	server, captured := newServer(t, func(w http.ResponseWriter, _ string) {
		_, _ = io.WriteString(w, modifyResponse("success"))
	})
	client := newTestClient(t, server)

	status, err := client.ChangeUserPassword(context.Background(), model.Identity{OID: "oid-1", Name: "alice"}, "N3w&Pass")
	require.NoError(t, err)
	assert.Equal(t, "success", status)

	require.Len(t, *captured, 1)
	assert.Equal(t, `"modifyObject"`, (*captured)[0].SOAPAction)
	assert.Contains(t, (*captured)[0].Body, "<clearValue>N3w&amp;Pass</clearValue>")
}

func TestChangeUserPassword_RequiresOID(t *testing.T) {
	server, captured := newServer(t, func(w http.ResponseWriter, _ string) {})
	client := newTestClient(t, server)

	_, err := client.ChangeUserPassword(context.Background(), model.Identity{Name: "alice"}, "pw")
	require.Error(t, err)
	assert.Empty(t, *captured)
}

func TestClient_InjectsCredentialsOnEveryRequest(t *testing.T) {
	server, captured := newServer(t, func(w http.ResponseWriter, body string) {
		if strings.Contains(body, "searchObjects") {
			_, _ = io.WriteString(w, searchResponse("alice"))
			return
		}
		_, _ = io.WriteString(w, modifyResponse("success"))
	})
	client := newTestClient(t, server)
	ctx := context.Background()

	identity, err := client.SearchUserByName(ctx, "alice")
	require.NoError(t, err)
	_, err = client.ChangeUserPassword(ctx, *identity, "pw")
	require.NoError(t, err)

	require.Len(t, *captured, 2)
	for _, req := range *captured {
		assert.True(t, req.HasAuth)
		assert.Equal(t, "administrator", req.User)
		assert.Equal(t, "5ecr3t", req.Pass)
		assert.Contains(t, req.Body, "<Username>administrator</Username>")
		assert.Contains(t, req.Body, ">5ecr3t</Password>")
	}
}

func TestClient_InterceptorOrder(t *testing.T) {
	server, captured := newServer(t, func(w http.ResponseWriter, _ string) {
		_, _ = io.WriteString(w, searchResponse("alice"))
	})
	type traceHeader struct {
		XMLName xml.Name `xml:"urn:test Trace"`
		ID      string   `xml:",chardata"`
	}
	trace := midpoint.InterceptorFunc(func(env *midpoint.Envelope) error {
		env.PrependHeader(&traceHeader{ID: "run-1"})
		return nil
	})
	client := newTestClient(t, server, trace)

	_, err := client.SearchUserByName(context.Background(), "alice")
	require.NoError(t, err)

	body := (*captured)[0].Body
	assert.Less(t, strings.Index(body, "<Trace"), strings.Index(body, "<Security"))
}

func TestClient_InterceptorErrorAbortsRequest(t *testing.T) {
	server, captured := newServer(t, func(w http.ResponseWriter, _ string) {})
	failing := midpoint.InterceptorFunc(func(*midpoint.Envelope) error {
		return errors.New("boom")
	})
	client := newTestClient(t, server, failing)

	_, err := client.SearchUserByName(context.Background(), "alice")
	require.ErrorContains(t, err, "boom")
	assert.Empty(t, *captured)
}

func TestNewClientWithEndpoint_RejectsBadURL(t *testing.T) {
	_, err := midpoint.NewClientWithEndpoint(nil, "ftp://example.com/model", testCreds)
	require.Error(t, err)

	_, err = midpoint.NewClientWithEndpoint(nil, "://", testCreds)
	require.Error(t, err)
}

func TestNewClient_DefaultEndpoint(t *testing.T) {
	client := midpoint.NewClient(testCreds)
	assert.Equal(t, midpoint.DefaultEndpoint, client.Endpoint())
}

func TestEnvelopes_Golden(t *testing.T) {
	server, captured := newServer(t, func(w http.ResponseWriter, body string) {
		if strings.Contains(body, "searchObjects") {
			_, _ = io.WriteString(w, searchResponse("alice"))
			return
		}
		_, _ = io.WriteString(w, modifyResponse("success"))
	})
	client := newTestClient(t, server)
	ctx := context.Background()

	identity, err := client.SearchUserByName(ctx, "alice")
	require.NoError(t, err)
	_, err = client.ChangeUserPassword(ctx, *identity, "N3w&Pass")
	require.NoError(t, err)
	require.Len(t, *captured, 2)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "search_objects", []byte((*captured)[0].Body))
	g.Assert(t, "modify_object", []byte((*captured)[1].Body))
}
