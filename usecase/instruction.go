package usecase

import (
	"fmt"
	"strings"

	"github.com/vozcasa/vozcasa/domain/entities"
)

// BuildSystemInstruction renders the system instruction sent on handshake
// from a snapshot of the registry. Later registry mutations do not update an
// instruction already sent.
func BuildSystemInstruction(devices []entities.Device) string {
	var b strings.Builder

	b.WriteString("Você é o assistente de voz de uma casa inteligente. ")
	b.WriteString("Responda sempre em português do Brasil, de forma curta e natural. ")
	b.WriteString("Use a função controlDevice para ligar ou desligar um dispositivo ")
	b.WriteString("e setDeviceValue para ajustar brilho, temperatura ou abertura. ")
	b.WriteString("Confirme em voz alta o que foi feito.\n\n")
	b.WriteString("Dispositivos disponíveis:\n")

	for _, d := range devices {
		state := "desligado"
		if d.IsOn {
			state = "ligado"
		}
		fmt.Fprintf(&b, "- %s (%s, %s), atualmente %s", d.Name, d.Category, d.Room, state)
		if d.Value != nil {
			fmt.Fprintf(&b, ", %s %g", d.ValueLabel(), *d.Value)
		}
		b.WriteString("\n")
	}

	return b.String()
}
