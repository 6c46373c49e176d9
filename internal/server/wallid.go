package server

import "crypto/rand"

// urlSafeAlphabet is used to mint wall ids: "wall_" followed by 42
// URL-safe characters (spec.md §3, "a persistent id of the form wall_ +
// 42 URL-safe characters").
const urlSafeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func newWallID() string {
	buf := make([]byte, 42)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	out := make([]byte, 42)
	for i, b := range buf {
		out[i] = urlSafeAlphabet[int(b)%len(urlSafeAlphabet)]
	}
	return "wall_" + string(out)
}
