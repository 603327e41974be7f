package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/openwater-labs/aquanet/internal/domain"
)

// Fingerprint digests every input that shapes a pair's raw series: the
// topology reference, the scenario horizon and the full leak set. Leak
// order is irrelevant; reordering entries in the config file must not
// trigger a rebuild. Sensor and sensorfault configs never participate;
// they are applied at read time.
func Fingerprint(s *domain.Scenario, lc *domain.LeakConfig) string {
	lines := make([]string, 0, len(lc.Leaks))
	for _, l := range lc.Leaks {
		part := "node:" + l.PartID
		if l.IsPipe {
			part = "pipe:" + l.PartID
		}
		peak := "-"
		if l.Kind == domain.LeakIncipient {
			peak = fmt.Sprintf("%d", l.Peak)
		}
		lines = append(lines, fmt.Sprintf("%s|%s|%g|%d|%s|%d", part, l.Kind, l.Diameter, l.Start, peak, l.End))
	}
	sort.Strings(lines)

	h := sha256.New()
	fmt.Fprintf(h, "network=%s\niterations=%d\ntimeStep=%d\n", s.Network, s.Iterations, s.TimeStep)
	h.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}
