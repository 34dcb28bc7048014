package dto

// LoginResponse mirrors the session record published while a QR login is in
// flight. Status carries the protocol status codes as strings: "0" pending,
// "201" scanned, "200" confirmed, "400" expired.
type LoginResponse struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
	QRCode string `json:"qrcode"`
}

type CheckLoginResponse struct {
	Status string `json:"status"`
	Avatar string `json:"avatar"`
	Alive  string `json:"alive"`
}
