package util

import (
	"bytes"
	"context"
	"io"
	"testing"
)

// BenchmarkPipe measures relay throughput through a loopback pair of
// connections.
func BenchmarkPipe(b *testing.B) {
	payload := bytes.Repeat([]byte("X"), DefaultBufSize)
	b.SetBytes(int64(len(payload)))

	for i := 0; i < b.N; i++ {
		user, a := connPair(b)
		c, device := connPair(b)

		go func() {
			user.Write(payload) //nolint:errcheck
			user.Close()
		}()
		go Pipe(context.Background(), a, c) //nolint:errcheck

		io.Copy(io.Discard, device) //nolint:errcheck
		device.Close()
	}
}

// BenchmarkBufPool measures the allocation advantage of sync.Pool
// buffer reuse versus fresh allocation.
func BenchmarkBufPool(b *testing.B) {
	b.Run("pool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := GetBuf()
			_ = (*buf)[0]
			PutBuf(buf)
		}
	})
	b.Run("alloc", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := make([]byte, DefaultBufSize)
			_ = buf[0]
		}
	})
}
