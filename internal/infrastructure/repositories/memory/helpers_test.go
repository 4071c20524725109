package memory

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

func candidateFor(i int) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate: fmt.Sprintf("candidate:%d 1 udp 2122260223 192.168.1.%d 54400 typ host", i, i%250),
	}
}
