package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndParseQRToken(t *testing.T) {
	token := BuildQRToken(42, 10, 400)
	ref, err := ParseQRToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), ref.RegistrationID)
	require.Equal(t, int64(10), ref.EventID)
	require.Equal(t, int64(400), ref.StudentID)
	require.Len(t, ref.Nonce, 8)
	require.Equal(t, token, ref.RawToken())
}

func TestParseQRTokenFromURL(t *testing.T) {
	token := BuildQRToken(42, 10, 400)
	ref, err := ParseQRToken("https://campus.example.com/attend?code=" + token)
	require.NoError(t, err)
	require.Equal(t, token, ref.RawToken())
}

func TestParseQRTokenRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"REG-42",
		"EVT-10-REG-42-STU-400-abcd1234",
		"REG-x-EVT-10-STU-400-abcd1234",
		"REG-42-EVT-10-STU-400",
		"https://campus.example.com/attend",
	}
	for _, code := range cases {
		_, err := ParseQRToken(code)
		require.Error(t, err, "code %q", code)
	}
}

func TestBuildQRTokenNoncesDiffer(t *testing.T) {
	require.NotEqual(t, BuildQRToken(1, 1, 1), BuildQRToken(1, 1, 1))
}
