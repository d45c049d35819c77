package models

// CommsMessage is the payload produced by the API when a communication event
// occurs and consumed by this service. Field values inside the three bags are
// raw strings; handlers convert them per event type.
type CommsMessage struct {
	Metadata            map[string]string `json:"Metadata"`
	CommunicationMethod map[string]string `json:"CommunicationMethod"`
	RelatedEntities     map[string]string `json:"RelatedEntities"`
	MessageData         map[string]string `json:"MessageData"`
	NotificationEmails  []string          `json:"NotificationEmails"`
}

// Type returns the event type tag carried in the metadata bag.
func (m *CommsMessage) Type() string {
	return m.Metadata["Type"]
}

// EventID returns the upstream communication event id, if the producer set one.
func (m *CommsMessage) EventID() string {
	return m.Metadata["CommunicationEventId"]
}

// SetEventID stores an event id in the metadata bag, allocating it if needed.
func (m *CommsMessage) SetEventID(id string) {
	if m.Metadata == nil {
		m.Metadata = map[string]string{}
	}
	m.Metadata["CommunicationEventId"] = id
}
