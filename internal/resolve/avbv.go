package resolve

import (
	"regexp"
	"strconv"
	"strings"
)

// Constants of the public av/BV transform used by bilibili since 2020.
const (
	bvXOR      = 23442827791579
	bvMask     = 2251799813685247
	bvMaxAID   = 1 << 51
	bvAlphabet = "FcwAPNKTMug3GV5Lj7EJnHpWsx4tb8haYeviqBz6rkCy12mUSDQX9RdoZf"
	bvPrefix   = "BV1"
)

var bvOrder = [9]int{8, 7, 0, 5, 1, 3, 2, 4, 6}

var (
	bvidPattern = regexp.MustCompile(`BV1[0-9A-Za-z]{9}`)
	avPattern   = regexp.MustCompile(`(?i)/video/av(\d+)`)
)

// AVToBV converts a numeric av id to its BV form.
func AVToBV(aid int64) string {
	var out [9]byte
	tmp := (bvMaxAID | aid) ^ bvXOR
	for _, pos := range bvOrder {
		out[pos] = bvAlphabet[tmp%58]
		tmp /= 58
	}
	return bvPrefix + string(out[:])
}

// BVToAV converts a BV id back to its numeric av id.
func BVToAV(bvid string) (int64, bool) {
	if len(bvid) != 12 || !strings.HasPrefix(bvid, bvPrefix) {
		return 0, false
	}
	code := bvid[3:]
	var tmp int64
	for i := len(bvOrder) - 1; i >= 0; i-- {
		idx := strings.IndexByte(bvAlphabet, code[bvOrder[i]])
		if idx < 0 {
			return 0, false
		}
		tmp = tmp*58 + int64(idx)
	}
	return (tmp & bvMask) ^ bvXOR, true
}

// FindBVID returns the first BV id in s.
func FindBVID(s string) (string, bool) {
	m := bvidPattern.FindString(s)
	return m, m != ""
}

// findAVID returns the BV form of the first /video/av<digits> in s.
func findAVID(s string) (string, bool) {
	m := avPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	aid, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || aid <= 0 || aid >= bvMaxAID {
		return "", false
	}
	return AVToBV(aid), true
}
