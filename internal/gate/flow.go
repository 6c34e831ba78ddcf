package gate

import (
	"strings"
	"sync"
)

// Keys del estado del flow.
const (
	// KeyPriorAuthorizationID guarda el ID de la autorización previa que el
	// pipeline puede reutilizar para emitir tokens sin volver a preguntar.
	KeyPriorAuthorizationID = "copy_from_client_authorization_id"

	// KeyAccountSub guarda el pseudónimo de la cuenta frente al client.
	KeyAccountSub = "account_sub"
)

// Flow es el estado explícito de un intento de autorización. El pipeline crea
// uno por intento y lo pasa a cada llamada del gate.
type Flow struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewFlow crea un Flow vacío.
func NewFlow() *Flow {
	return &Flow{values: map[string]string{}}
}

// Put guarda un valor.
func (f *Flow) Put(key, value string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = value
}

// Get lee un valor.
func (f *Flow) Get(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok
}

// Values retorna una copia del estado.
func (f *Flow) Values() map[string]string {
	out := map[string]string{}
	if f == nil {
		return out
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// ParsePrompt indica si el parámetro OAuth2 prompt (lista separada por
// espacios) pide consentimiento explícito.
func ParsePrompt(prompt string) (forceReconsent bool) {
	for _, p := range strings.Fields(prompt) {
		if p == "consent" {
			return true
		}
	}
	return false
}
