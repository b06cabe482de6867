package signal

import (
	"encoding/json"

	"github.com/dkeye/Meet/internal/domain"
)

type peerSignalMessage struct {
	Target domain.ClientID `json:"target" validate:"required,max=100"`
	Data   json.RawMessage `json:"data"`
}

type chatMessage struct {
	Message     string  `json:"message" validate:"required,max=1000"`
	DisplayName *string `json:"displayName" validate:"omitnil,max=100"`
}

type joinMessage struct {
	DisplayName *string `json:"displayName" validate:"omitnil,max=100"`
}

type toggleMessage struct {
	Enabled *bool `json:"enabled"`
}
