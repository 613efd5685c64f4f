package repository

import (
	"crypto/md5"
	"strconv"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
)

// PointIDFor maps a movie ID to a Qdrant point ID deterministically.
// Numeric dataset IDs map to numeric point IDs directly. Anything else is
// hashed into a stable UUID, so re-indexing the same dataset always overwrites
// the same points instead of accumulating duplicates.
func PointIDFor(movieID string) *pb.PointId {
	if n, err := strconv.ParseUint(movieID, 10, 64); err == nil {
		return &pb.PointId{
			PointIdOptions: &pb.PointId_Num{Num: n},
		}
	}

	sum := md5.Sum([]byte(movieID))
	uid, err := uuid.FromBytes(sum[:])
	if err != nil {
		// md5 sums are always 16 bytes; FromBytes cannot fail here
		uid = uuid.NewMD5(uuid.NameSpaceOID, []byte(movieID))
	}
	return &pb.PointId{
		PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()},
	}
}
