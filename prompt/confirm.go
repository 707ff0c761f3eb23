package prompt

import (
	"fmt"
	"sync"

	"github.com/Dyastin-0/lanbyte/core"
	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
)

// Confirm returns a receive policy that asks the user about every offer.
// Prompts from concurrent connections are shown one at a time, and a
// prompt that fails to render rejects the offer.
func Confirm() core.Policy {
	var mu sync.Mutex

	return func(filename string, size uint64) core.Decision {
		mu.Lock()
		defer mu.Unlock()

		accept := false

		form := huh.NewConfirm().
			Title(fmt.Sprintf("Accept %s (%s)?", filename, humanize.IBytes(size))).
			Affirmative("Accept").
			Negative("Reject").
			Value(&accept)

		if err := form.Run(); err != nil || !accept {
			return core.DecisionReject
		}

		return core.DecisionAccept
	}
}
