package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame_BadLine(t *testing.T) {
	_, ok := ParseFrame([]byte("not json"))
	assert.False(t, ok)
}

func TestLastResponseID_ResolutionOrder(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "response own id wins",
			line: `{"result":{"response":{"responseId":"a","modelResponse":{"responseId":"b"}},"modelResponse":{"responseId":"c"}}}`,
			want: "a",
		},
		{
			name: "response modelResponse next",
			line: `{"result":{"response":{"modelResponse":{"responseId":"b"}},"modelResponse":{"responseId":"c"}}}`,
			want: "b",
		},
		{
			name: "result modelResponse next",
			line: `{"result":{"response":{},"modelResponse":{"responseId":"c"},"userResponse":{"responseId":"d"}}}`,
			want: "c",
		},
		{
			name: "result userResponse next",
			line: `{"result":{"response":{},"userResponse":{"responseId":"d"}}}`,
			want: "d",
		},
		{
			name: "response userResponse last",
			line: `{"result":{"response":{"userResponse":{"responseId":"e"}}}}`,
			want: "e",
		},
		{
			name: "nothing",
			line: `{"result":{"response":{}}}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, ok := ParseFrame([]byte(tt.line))
			require.True(t, ok)
			assert.Equal(t, tt.want, frame.Result.LastResponseID())
		})
	}
}
