// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package probe

import (
	"math/rand"

	"github.com/spaolacci/murmur3"
)

// UserAgent picks an agent for domain from agents.
// The same domain always maps to the same agent; an empty domain maps to the first one.
func UserAgent(agents []string, domain string) string {
	if len(agents) == 0 {
		return ""
	}
	if domain == "" {
		return agents[0]
	}

	h := murmur3.New64()
	if _, err := h.Write([]byte(domain)); err != nil {
		return RandomUserAgent(agents)
	}
	return agents[h.Sum64()%uint64(len(agents))]
}

// RandomUserAgent picks any agent from agents
func RandomUserAgent(agents []string) string {
	if len(agents) == 0 {
		return ""
	}
	return agents[rand.Intn(len(agents))]
}
