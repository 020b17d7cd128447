package session

// Record is one stored session. Token holds the keyed hash of the session
// token, never the token itself.
type Record struct {
	Token   string `json:"token"`
	OS      string `json:"os"`
	Browser string `json:"browser"`
	IP      string `json:"ip"`
	Time    int64  `json:"time"`
}

// Issued is the plaintext credential pair handed to the client once.
type Issued struct {
	ID    string
	Token string
}
