package discord

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrBadSignature = errors.New("invalid interaction signature")

// Interaction is a decoded webhook interaction with the lookups the command
// handler needs.
type Interaction struct {
	*discordgo.Interaction
}

// UserID is the invoking user, whether the command ran in a guild or a DM.
func (i *Interaction) UserID() string {
	if i.Member != nil && i.Member.User != nil && i.Member.User.ID != "" {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (i *Interaction) command() (discordgo.ApplicationCommandInteractionData, bool) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return discordgo.ApplicationCommandInteractionData{}, false
	}
	data, ok := i.Data.(discordgo.ApplicationCommandInteractionData)
	return data, ok
}

// CommandName is empty for anything but a slash command.
func (i *Interaction) CommandName() string {
	data, ok := i.command()
	if !ok {
		return ""
	}
	return data.Name
}

// StringOption returns the named option when it is a string.
func (i *Interaction) StringOption(name string) string {
	data, ok := i.command()
	if !ok {
		return ""
	}
	for _, opt := range data.Options {
		if opt == nil || opt.Name != name {
			continue
		}
		if s, ok := opt.Value.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// DecodeInteraction parses a verified interaction body.
func DecodeInteraction(body []byte) (*Interaction, error) {
	var in discordgo.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("decode interaction: %w", err)
	}
	return &Interaction{Interaction: &in}, nil
}

// Verifier checks the Ed25519 signature Discord puts on every interaction.
type Verifier struct {
	key ed25519.PublicKey
}

func NewVerifier(publicKeyHex string) (*Verifier, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(publicKeyHex))
	if err != nil {
		return nil, fmt.Errorf("decode discord public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("discord public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return &Verifier{key: ed25519.PublicKey(raw)}, nil
}

// Verify checks the signature headers against the request body. The body is
// left readable.
func (v *Verifier) Verify(r *http.Request) error {
	if !discordgo.VerifyInteraction(r, v.key) {
		return ErrBadSignature
	}
	return nil
}
