package genlive

import (
	"google.golang.org/genai"

	"github.com/vozcasa/vozcasa/domain/entities"
)

// clientMessage is the envelope for every frame the client writes over the
// BidiGenerateContent socket. Exactly one field is set per message.
type clientMessage struct {
	Setup         *setupMessage  `json:"setup,omitempty"`
	RealtimeInput *realtimeInput `json:"realtimeInput,omitempty"`
	ToolResponse  *toolResponse  `json:"toolResponse,omitempty"`
}

// setupMessage opens a session: model, audio-out generation config, the
// system instruction built from the device registry and the tool surface.
type setupMessage struct {
	Model             string            `json:"model"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *genai.Content    `json:"systemInstruction,omitempty"`
	Tools             []*genai.Tool     `json:"tools,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string            `json:"responseModalities,omitempty"`
	SpeechConfig       *genai.SpeechConfig `json:"speechConfig,omitempty"`
}

// realtimeInput carries one captured audio frame. genai.Blob marshals its
// Data bytes as base64, which is exactly what the wire wants.
type realtimeInput struct {
	Media *genai.Blob `json:"media,omitempty"`
}

type toolResponse struct {
	FunctionResponses []*genai.FunctionResponse `json:"functionResponses"`
}

// serverMessage is the envelope for every frame the server sends. Fields are
// not mutually exclusive: one message can carry audio and tool calls.
type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	ToolCall      *toolCall      `json:"toolCall,omitempty"`
}

type serverContent struct {
	ModelTurn    *genai.Content `json:"modelTurn,omitempty"`
	TurnComplete bool           `json:"turnComplete,omitempty"`
	Interrupted  bool           `json:"interrupted,omitempty"`
}

type toolCall struct {
	FunctionCalls []*genai.FunctionCall `json:"functionCalls,omitempty"`
}

// deviceTools declares the two functions the model may call. The schemas
// mirror what the dispatcher validates.
func deviceTools() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        entities.ToolControlDevice,
				Description: "Liga ou desliga um dispositivo da casa pelo nome.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"deviceName": {
							Type:        genai.TypeString,
							Description: "Nome do dispositivo, por exemplo 'Luz da Sala'.",
						},
						"action": {
							Type: genai.TypeString,
							Enum: []string{entities.ActionTurnOn, entities.ActionTurnOff},
						},
					},
					Required: []string{"deviceName", "action"},
				},
			},
			{
				Name:        entities.ToolSetDeviceValue,
				Description: "Ajusta o valor de um dispositivo: brilho, temperatura ou abertura.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"deviceName": {
							Type: genai.TypeString,
						},
						"value": {
							Type:        genai.TypeNumber,
							Description: "Novo valor para o dispositivo.",
						},
					},
					Required: []string{"deviceName", "value"},
				},
			},
		},
	}}
}

// toFunctionResponses converts dispatcher results into the wire shape, one
// response per call, order preserved.
func toFunctionResponses(results []entities.ToolResult) []*genai.FunctionResponse {
	responses := make([]*genai.FunctionResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, &genai.FunctionResponse{
			ID:   result.CallID,
			Name: result.Name,
			Response: map[string]any{
				"result": map[string]any{
					"status":  result.Status,
					"message": result.Message,
				},
			},
		})
	}
	return responses
}
