package httpdto

// SendOTPRequest is used for POST /api/auth/send-otp
type SendOTPRequest struct {
	Identifier string `json:"identifier"`
}

// SendOTPResponse is returned after a code has been issued
type SendOTPResponse struct {
	Message string `json:"message"`
}

// VerifyOTPRequest is used for POST /api/auth/verify-otp
type VerifyOTPRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
}

// VerifyOTPResponse carries Token on success and Message on failure
type VerifyOTPResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}
