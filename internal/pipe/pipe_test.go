package pipe

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipeReadWrite(t *testing.T) {
	wantedData := []byte("Hello!")
	pipe := New(0)

	go func() {
		_, _ = pipe.Write(wantedData)
		_ = pipe.Close()
	}()

	data, err := io.ReadAll(pipe)
	require.NoError(t, err)
	require.Equal(t, wantedData, data)
}

func TestPipeZeroCopy(t *testing.T) {
	pipe := New(0)
	written := make(chan int, 1)

	go func() {
		n, err := pipe.Write([]byte("Hello, world!"))
		require.NoError(t, err)
		written <- n
	}()

	// the writer copies into our buffer directly, pieces are limited by its size
	buff := make([]byte, 5)
	var got []byte

	for len(got) < len("Hello, world!") {
		n, err := pipe.Read(buff)
		require.NoError(t, err)
		require.LessOrEqual(t, n, len(buff))
		got = append(got, buff[:n]...)
	}

	require.Equal(t, "Hello, world!", string(got))
	require.Equal(t, len("Hello, world!"), <-written)
}

func TestPipeNext(t *testing.T) {
	pipe := New(4)

	go func() {
		_, _ = pipe.Write([]byte("abcdef"))
		_ = pipe.Close()
	}()

	data, err := pipe.Next()
	require.NoError(t, err)
	require.Equal(t, "abcd", string(data))

	data, err = pipe.Next()
	require.NoError(t, err)
	require.Equal(t, "ef", string(data))

	data, err = pipe.Next()
	require.ErrorIs(t, err, io.EOF)
	require.Empty(t, data)
}

func TestPipeBackpressure(t *testing.T) {
	pipe := New(0)
	returned := make(chan struct{})

	go func() {
		_, _ = pipe.Write([]byte("blocked"))
		close(returned)
	}()

	select {
	case <-returned:
		require.Fail(t, "write must block until there is a reader")
	case <-time.After(50 * time.Millisecond):
	}

	buff := make([]byte, 64)
	n, err := pipe.Read(buff)
	require.NoError(t, err)
	require.Equal(t, "blocked", string(buff[:n]))
	<-returned
}

func TestPipeClose(t *testing.T) {
	t.Run("pending read gets EOF", func(t *testing.T) {
		pipe := New(0)
		result := make(chan error, 1)

		go func() {
			_, err := pipe.Read(make([]byte, 8))
			result <- err
		}()

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, pipe.Close())
		require.ErrorIs(t, <-result, io.EOF)
	})

	t.Run("idempotent", func(t *testing.T) {
		pipe := New(0)
		require.NoError(t, pipe.Close())
		require.NoError(t, pipe.Close())
		pipe.Abort(errors.New("too late"))

		_, err := pipe.Read(make([]byte, 8))
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("write after close", func(t *testing.T) {
		pipe := New(0)
		require.NoError(t, pipe.Close())

		n, err := pipe.Write([]byte("data"))
		require.Zero(t, n)
		require.ErrorIs(t, err, ErrClosed)
	})

	t.Run("empty write on closed pipe", func(t *testing.T) {
		pipe := New(0)
		require.NoError(t, pipe.Close())

		n, err := pipe.Write(nil)
		require.Zero(t, n)
		require.NoError(t, err)
	})
}

func TestPipeAbort(t *testing.T) {
	wantErr := errors.New("connection reset")

	t.Run("pending read", func(t *testing.T) {
		pipe := New(0)
		result := make(chan error, 1)

		go func() {
			_, err := pipe.Read(make([]byte, 8))
			result <- err
		}()

		time.Sleep(10 * time.Millisecond)
		pipe.Abort(wantErr)
		require.ErrorIs(t, <-result, wantErr)
		require.ErrorIs(t, pipe.Err(), wantErr)
	})

	t.Run("pending write", func(t *testing.T) {
		pipe := New(0)
		result := make(chan error, 1)

		go func() {
			_, err := pipe.Write([]byte("data"))
			result <- err
		}()

		time.Sleep(10 * time.Millisecond)
		pipe.Abort(wantErr)
		require.ErrorIs(t, <-result, wantErr)
	})

	t.Run("nil error", func(t *testing.T) {
		pipe := New(0)
		pipe.Abort(nil)

		_, err := pipe.Read(make([]byte, 8))
		require.ErrorIs(t, err, io.ErrClosedPipe)
	})

	t.Run("data before abort is delivered", func(t *testing.T) {
		pipe := New(0)

		go func() {
			_, _ = pipe.Write([]byte("partial"))
			pipe.Abort(wantErr)
		}()

		data, err := io.ReadAll(pipe)
		require.ErrorIs(t, err, wantErr)
		require.Equal(t, "partial", string(data))
	})
}

func TestPipeEmptyRead(t *testing.T) {
	pipe := New(0)
	n, err := pipe.Read(nil)
	require.Zero(t, n)
	require.NoError(t, err)
}
