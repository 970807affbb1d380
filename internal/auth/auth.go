package auth

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const serviceName = "dubctl"

// service describes one credentialed external collaborator this process
// talks to; credentials are process-wide state, resolved lazily.
// premium/cloud are the two concrete TTS providers; gemini and
// openai are the translation fallback sequence's two legs.
type service struct {
	account string
	envVar  string
	label   string
}

var services = map[string]service{
	"gemini": {account: "gemini-api-key", envVar: "GEMINI_API_KEY", label: "Gemini"},
	"openai": {account: "openai-api-key", envVar: "OPENAI_API_KEY", label: "OpenAI"},
	"premium": {account: "premium-tts-api-key", envVar: "PREMIUM_TTS_API_KEY", label: "Premium TTS"},
	"cloud":  {account: "cloud-tts-api-key", envVar: "CLOUD_TTS_API_KEY", label: "Cloud TTS"},
}

func lookup(svc string) service {
	if s, ok := services[svc]; ok {
		return s
	}
	return services["gemini"]
}

// ServiceLabel returns the human-readable name for svc, for status/prompt
// output.
func ServiceLabel(svc string) string { return lookup(svc).label }

// IsKnownService reports whether svc is one of the four recognized service
// keys.
func IsKnownService(svc string) bool {
	_, ok := services[svc]
	return ok
}

// GetKey retrieves the API key for a specific service (gemini, openai,
// premium, or cloud). If allowEnv is false, environment variables are
// ignored.
func GetKey(svc string, allowEnv bool) (string, string) {
	s := lookup(svc)

	// 1. Try Keychain
	key, err := keyring.Get(serviceName, s.account)
	if err == nil && key != "" {
		return strings.TrimSpace(key), "Keychain"
	}

	if allowEnv {
		// 2. Try Env Var (optional)
		key = os.Getenv(s.envVar)
		if key != "" {
			return strings.TrimSpace(key), "Environment Variable"
		}
	}

	return "", ""
}

// SaveKey saves the key for a specific service to the OS Keychain.
func SaveKey(svc, key string) error {
	return keyring.Set(serviceName, lookup(svc).account, strings.TrimSpace(key))
}

// DeleteKey removes the key for a specific service from the OS Keychain.
func DeleteKey(svc string) error {
	return keyring.Delete(serviceName, lookup(svc).account)
}

// GetStatus returns whether a key exists for a specific service in the keychain.
func GetStatus(svc string) bool {
	key, err := keyring.Get(serviceName, lookup(svc).account)
	if err != nil || key == "" {
		return false
	}
	return true
}

// PromptForAPIKey securely prompts the user for their API key.
func PromptForAPIKey(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

// GetEnvKey retrieves the key from environment variables only.
func GetEnvKey(svc string) (string, bool) {
	key := strings.TrimSpace(os.Getenv(lookup(svc).envVar))
	if key == "" {
		return "", false
	}
	return key, true
}

// GetProjectRegion resolves the Vertex-style project id and region used by
// the Gemini translation leg's region dimension. Both fall back to an
// empty string, in which case the translator's region label is purely
// informational (see internal/translator/provider.go's defaultRegions).
func GetProjectRegion() (project, region string) {
	return strings.TrimSpace(os.Getenv("DUBCTL_PROJECT_ID")), strings.TrimSpace(os.Getenv("DUBCTL_REGION"))
}

// GetCredentialsPath resolves the service-account credentials path for the
// remote speech-to-text provider. Empty means application-default
// credentials.
func GetCredentialsPath() string {
	return strings.TrimSpace(os.Getenv("DUBCTL_SPEECH_CREDENTIALS"))
}

// GetAsyncBucket resolves the optional cloud-storage bucket used for
// async/large-file transcription. Empty means the
// transcription provider should use its synchronous/inline path.
func GetAsyncBucket() string {
	return strings.TrimSpace(os.Getenv("DUBCTL_TRANSCRIBE_BUCKET"))
}
