// Package relay defines the hop services of both relay chains, their wire
// schema and the typed clients upstream hops use to reach them.
package relay

import "github.com/aanthord/mtls-relay/internal/models"

// Method names shared by both ends of each hop.
const (
	MethodSendMessage   = "Messenger.SendMessage"
	MethodGetMessages   = "Messenger.GetMessages"
	MethodProcessData   = "Pipeline.ProcessData"
	MethodSendToDisplay = "Display.SendToDisplay"
	MethodListRecords   = "Display.ListRecords"
)

type SendMessageRequest struct {
	Content   string `msgpack:"content"`
	Sender    string `msgpack:"sender"`
	Timestamp int64  `msgpack:"timestamp"`
}

type SendMessageResponse struct {
	Success bool   `msgpack:"success"`
	ID      string `msgpack:"id"`
}

type GetMessagesRequest struct{}

type GetMessagesResponse struct {
	Messages []models.Message `msgpack:"messages"`
}

// ProcessDataRequest carries an opaque JSON document as text. SourceID is the
// correlation id minted by the ingress hop; it may be empty.
type ProcessDataRequest struct {
	JSONData string `msgpack:"json_data"`
	SourceID string `msgpack:"source_id"`
}

type ProcessDataResponse struct {
	Success   bool   `msgpack:"success"`
	RequestID string `msgpack:"request_id"`
	DisplayID string `msgpack:"display_id"`
}

type SendToDisplayRequest struct {
	JSONData  string `msgpack:"json_data"`
	RequestID string `msgpack:"request_id"`
}

type SendToDisplayResponse struct {
	Success   bool   `msgpack:"success"`
	DisplayID string `msgpack:"display_id"`
}

type ListRecordsRequest struct{}

type ListRecordsResponse struct {
	Records []models.StoredRecord `msgpack:"records"`
}
