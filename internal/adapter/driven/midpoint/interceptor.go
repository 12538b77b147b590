package midpoint

// RequestInterceptor inspects or amends an outbound envelope before it is
// serialized. Interceptors run in registration order and never see responses.
type RequestInterceptor interface {
	BeforeSend(env *Envelope) error
}

// InterceptorFunc adapts a function to RequestInterceptor.
type InterceptorFunc func(env *Envelope) error

// BeforeSend calls f(env).
func (f InterceptorFunc) BeforeSend(env *Envelope) error {
	return f(env)
}

// SecurityHeaderInterceptor prepends a WS-Security UsernameToken header
// carrying the admin credentials to every request.
type SecurityHeaderInterceptor struct {
	creds Credentials
}

// NewSecurityHeaderInterceptor creates an interceptor for creds.
func NewSecurityHeaderInterceptor(creds Credentials) *SecurityHeaderInterceptor {
	return &SecurityHeaderInterceptor{creds: creds}
}

// BeforeSend inserts the security header ahead of any existing header blocks.
func (i *SecurityHeaderInterceptor) BeforeSend(env *Envelope) error {
	env.PrependHeader(&securityHeader{
		UsernameToken: usernameToken{
			Username: i.creds.Username,
			Password: wssePassword{Type: passwordTextType, Value: i.creds.Password},
		},
	})
	return nil
}
