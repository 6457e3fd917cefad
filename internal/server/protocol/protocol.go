// Package protocol defines the wire messages exchanged with editor clients.
//
// Every inbound message is a JSON object with a "type" tag. Decode turns the
// raw bytes into one concrete request variant, so the router's dispatch is a
// total switch over a closed set of types rather than string comparisons
// spread through handler code.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/usernamedt/multitext-server/internal/common"
)

// Kind tags an inbound message.
type Kind string

const (
	KindUserRegister Kind = "user_register"
	KindUserLogin    Kind = "user_login"
	KindAllFiles     Kind = "all_files_request"
	KindFileRequest  Kind = "file_request"
	KindCreateFile   Kind = "create_file_request"
	KindSaveFile     Kind = "save_file_request"
	KindFileShare    Kind = "file_share_request"
	KindPatch        Kind = "patch"
)

// Credentials accompany every request. The server re-authenticates each
// message; there is no connection-level login state on the wire.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Request is an inbound message variant.
type Request interface {
	Kind() Kind
}

type RegisterRequest struct {
	Credentials
}

func (RegisterRequest) Kind() Kind { return KindUserRegister }

type LoginRequest struct {
	Credentials
}

func (LoginRequest) Kind() Kind { return KindUserLogin }

type AllFilesRequest struct {
	Credentials
}

func (AllFilesRequest) Kind() Kind { return KindAllFiles }

// FileRequest opens a file. Owner is empty when the requester opens a file
// they own themselves.
type FileRequest struct {
	Credentials
	Filename string `json:"filename"`
	Owner    string `json:"owner,omitempty"`
}

func (FileRequest) Kind() Kind { return KindFileRequest }

type CreateFileRequest struct {
	Credentials
	Filename string `json:"filename"`
}

func (CreateFileRequest) Kind() Kind { return KindCreateFile }

type SaveFileRequest struct {
	Credentials
	Filename string `json:"filename"`
	Owner    string `json:"owner,omitempty"`
}

func (SaveFileRequest) Kind() Kind { return KindSaveFile }

// FileShareRequest grants ShareUser access to the owner's file. Owner defaults
// to the requester's own username when empty.
type FileShareRequest struct {
	Credentials
	Filename  string `json:"filename"`
	Owner     string `json:"owner,omitempty"`
	ShareUser string `json:"share_user"`
}

func (FileShareRequest) Kind() Kind { return KindFileShare }

// PatchRequest submits one edit operation against an open file. Content is
// opaque to the synchronization core; the raw inbound bytes are what gets
// re-broadcast to the file's other sessions.
type PatchRequest struct {
	Credentials
	Filename string `json:"filename,omitempty"`
	Owner    string `json:"owner,omitempty"`
	FileID   string `json:"file_id"`
	Content  string `json:"content"`
}

func (PatchRequest) Kind() Kind { return KindPatch }

// Decode parses raw bytes into one of the request variants. Unknown or
// malformed messages yield common.ErrorProtocol.
func Decode(raw []byte) (Request, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorProtocol, err)
	}

	var req Request
	switch head.Type {
	case KindUserRegister:
		req = &RegisterRequest{}
	case KindUserLogin:
		req = &LoginRequest{}
	case KindAllFiles:
		req = &AllFilesRequest{}
	case KindFileRequest:
		req = &FileRequest{}
	case KindCreateFile:
		req = &CreateFileRequest{}
	case KindSaveFile:
		req = &SaveFileRequest{}
	case KindFileShare:
		req = &FileShareRequest{}
	case KindPatch:
		req = &PatchRequest{}
	default:
		return nil, fmt.Errorf("%w: unsupported event %q", common.ErrorProtocol, head.Type)
	}

	if err := json.Unmarshal(raw, req); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorProtocol, err)
	}
	return req, nil
}

// Outbound responses. Each carries a success flag; failures deliberately
// carry nothing else so a client cannot distinguish which check failed.

type AuthResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Content string `json:"content"`
	Token   string `json:"token,omitempty"`
}

func NewAuthResponse(success bool, content, token string) AuthResponse {
	return AuthResponse{Type: "auth_response", Success: success, Content: content, Token: token}
}

// FileListing is the payload of AllFilesResponse.
type FileListing struct {
	Files       []string            `json:"files"`
	SharedFiles map[string][]string `json:"shared_files"`
}

type AllFilesResponse struct {
	Type    string      `json:"type"`
	Success bool        `json:"success"`
	Content FileListing `json:"content"`
}

func NewAllFilesResponse(listing FileListing) AllFilesResponse {
	return AllFilesResponse{Type: "all_files_response", Success: true, Content: listing}
}

// AllFilesFailure carries no detail beyond the failed status.
type AllFilesFailure struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
}

func NewAllFilesFailure() AllFilesFailure {
	return AllFilesFailure{Type: "all_files_response", Success: false}
}

// FileRequestResponse is the success reply to a file open; an empty history
// is a present-but-empty content array, not an omitted field.
type FileRequestResponse struct {
	Type    string   `json:"type"`
	Success bool     `json:"success"`
	FileID  string   `json:"file_id"`
	Content []string `json:"content"`
}

func NewFileRequestResponse(fileID string, history []string) FileRequestResponse {
	if history == nil {
		history = []string{}
	}
	return FileRequestResponse{Type: "file_request_response", Success: true, FileID: fileID, Content: history}
}

// FileRequestFailure carries no detail beyond the failed status.
type FileRequestFailure struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
}

func NewFileRequestFailure() FileRequestFailure {
	return FileRequestFailure{Type: "file_request_response", Success: false}
}

type CreateFileResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Content string `json:"content"`
}

func NewCreateFileResponse(success bool, content string) CreateFileResponse {
	return CreateFileResponse{Type: "create_file_response", Success: success, Content: content}
}

type SaveFileResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
}

func NewSaveFileResponse(success bool) SaveFileResponse {
	return SaveFileResponse{Type: "save_file_response", Success: success}
}

type FileShareResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
}

func NewFileShareResponse(success bool) FileShareResponse {
	return FileShareResponse{Type: "file_share_response", Success: success}
}

// Encode marshals an outbound response to wire bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
