package method

// Method is a request method token. Any token is allowed to be sent, the constants
// just cover the registered ones.
type Method string

const (
	GET     Method = "GET"
	HEAD    Method = "HEAD"
	POST    Method = "POST"
	PUT     Method = "PUT"
	DELETE  Method = "DELETE"
	CONNECT Method = "CONNECT"
	OPTIONS Method = "OPTIONS"
	TRACE   Method = "TRACE"
	PATCH   Method = "PATCH"
)

// List contains all the registered methods.
var List = []Method{GET, HEAD, POST, PUT, DELETE, CONNECT, OPTIONS, TRACE, PATCH}

func (m Method) String() string {
	return string(m)
}

// Valid reports whether the method is a non-empty token as of RFC 9110, 5.6.2.
func (m Method) Valid() bool {
	if len(m) == 0 {
		return false
	}

	for i := 0; i < len(m); i++ {
		if !IsTokenChar(m[i]) {
			return false
		}
	}

	return true
}

// IsTokenChar reports whether the character is allowed in a token.
func IsTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}

	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}

	return false
}
