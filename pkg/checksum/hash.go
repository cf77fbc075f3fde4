package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"blobsync/pkg/types"
)

// ChunkSize 是流式计算时每次读取的大小
// 无论文件多大，内存占用都是固定的
const ChunkSize = 8 * 1024

// File 流式计算文件的 MD5，不走缓存
func File(path string) (types.Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Reader(f)
}

// Reader 流式计算任意 Reader 的 MD5
func Reader(r io.Reader) (types.Checksum, error) {
	h := md5.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("checksum read failed: %w", err)
	}
	return types.Checksum(hex.EncodeToString(h.Sum(nil))), nil
}

// Bytes 计算内存数据的 MD5 (测试和小对象用)
func Bytes(data []byte) types.Checksum {
	sum := md5.Sum(data)
	return types.Checksum(hex.EncodeToString(sum[:]))
}
