package midpoint

import "encoding/xml"

const (
	nsSOAP   = "http://schemas.xmlsoap.org/soap/envelope/"
	nsModel  = "http://midpoint.evolveum.com/xml/ns/public/model/model-2"
	nsCommon = "http://midpoint.evolveum.com/xml/ns/public/common/common-2a"
	nsQuery  = "http://prism.evolveum.com/xml/ns/public/query-2"
	nsWSSE   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"

	passwordTextType = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"

	userTypeURI  = nsCommon + "#UserType"
	passwordPath = "credentials/password"
)

// Envelope is an outbound SOAP 1.1 message. Interceptors may add header
// entries before it is serialized.
type Envelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Header  *Header  `xml:"http://schemas.xmlsoap.org/soap/envelope/ Header,omitempty"`
	Body    Body     `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
}

// Header holds SOAP header blocks. Each entry must carry its own XMLName.
type Header struct {
	Entries []any
}

// Body holds the single operation payload.
type Body struct {
	Content any
}

// PrependHeader inserts entry as the first header block.
func (e *Envelope) PrependHeader(entry any) {
	if e.Header == nil {
		e.Header = &Header{}
	}
	e.Header.Entries = append([]any{entry}, e.Header.Entries...)
}

// --- WS-Security ---

type securityHeader struct {
	XMLName       xml.Name      `xml:"http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd Security"`
	UsernameToken usernameToken `xml:"UsernameToken"`
}

type usernameToken struct {
	Username string       `xml:"Username"`
	Password wssePassword `xml:"Password"`
}

type wssePassword struct {
	Type  string `xml:"Type,attr"`
	Value string `xml:",chardata"`
}

// --- searchObjects ---

type searchObjectsRequest struct {
	XMLName    xml.Name  `xml:"http://midpoint.evolveum.com/xml/ns/public/model/model-2 searchObjects"`
	ObjectType string    `xml:"objectType"`
	Query      queryType `xml:"query"`
	Options    string    `xml:"options"`
}

type queryType struct {
	Filter equalFilter
}

type equalFilter struct {
	XMLName     xml.Name `xml:"http://prism.evolveum.com/xml/ns/public/query-2 equal"`
	CommonXMLNS string   `xml:"xmlns:c,attr"`
	Path        string   `xml:"path"`
	Value       string   `xml:"value"`
}

func newNameEqualQuery(name string) queryType {
	return queryType{Filter: equalFilter{
		CommonXMLNS: nsCommon,
		Path:        "c:name",
		Value:       name,
	}}
}

// --- modifyObject ---

type modifyObjectRequest struct {
	XMLName      xml.Name           `xml:"http://midpoint.evolveum.com/xml/ns/public/model/model-2 modifyObject"`
	ObjectType   string             `xml:"objectType"`
	ObjectChange objectModification `xml:"objectChange"`
}

type objectModification struct {
	OID          string      `xml:"http://midpoint.evolveum.com/xml/ns/public/common/common-2a oid"`
	Modification []itemDelta `xml:"http://midpoint.evolveum.com/xml/ns/public/common/common-2a modification"`
}

type itemDelta struct {
	ModificationType string     `xml:"modificationType"`
	Path             deltaPath  `xml:"http://prism.evolveum.com/xml/ns/public/query-2 path"`
	Value            deltaValue `xml:"value"`
}

type deltaPath struct {
	Value string `xml:",chardata"`
}

type deltaValue struct {
	ClearValue string `xml:"clearValue"`
}

// newPathDeclaration qualifies path against the common schema namespace.
func newPathDeclaration(path string) deltaPath {
	return deltaPath{Value: "declare default namespace '" + nsCommon + "'; " + path}
}

// --- responses ---

// responseEnvelope matches elements by local name so the server's prefix
// choices do not matter.
type responseEnvelope struct {
	Body struct {
		Fault         *soapFault             `xml:"Fault"`
		SearchObjects *searchObjectsResponse `xml:"searchObjectsResponse"`
		ModifyObject  *modifyObjectResponse  `xml:"modifyObjectResponse"`
	} `xml:"Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type searchObjectsResponse struct {
	ObjectList struct {
		Objects []struct {
			OID  string `xml:"oid,attr"`
			Name string `xml:"name"`
		} `xml:"object"`
	} `xml:"objectList"`
	Result operationResult `xml:"result"`
}

type modifyObjectResponse struct {
	Result operationResult `xml:"result"`
}

type operationResult struct {
	Status string `xml:"status"`
}
