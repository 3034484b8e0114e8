package cryptoutil

import (
	"io"

	"github.com/minio/sio"
)

// EncryptReader wraps r so that everything read from it comes out DARE-encrypted.
// Used when mirroring backup files to remote object storage.
func EncryptReader(r io.Reader, key []byte) (io.Reader, error) {
	return sio.EncryptReader(r, sio.Config{Key: key})
}

// DecryptReader reverses EncryptReader.
func DecryptReader(r io.Reader, key []byte) (io.Reader, error) {
	return sio.DecryptReader(r, sio.Config{Key: key})
}

// EncryptedSize reports the ciphertext size for a plaintext of the given size,
// so object uploads can declare an exact content length.
func EncryptedSize(size int64) (int64, error) {
	encSize, err := sio.EncryptedSize(uint64(size))
	if err != nil {
		return 0, err
	}
	return int64(encSize), nil
}
