package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFile(t *testing.T) {
	out := File("report.pdf", 250000)

	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "244 KiB")
}
