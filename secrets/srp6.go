package secrets

import (
	"fmt"
	"math/big"

	"github.com/golang/glog"
)

var (
	// SRP6Modulus is the safe prime N shared by every logon server and client.
	SRP6Modulus *big.Int
	// SRP6Generator is g, the generator of the group modulo SRP6Modulus.
	SRP6Generator *big.Int
	// SRP6Multiplier is k in B = k*v + g^b. The protocol fixes it at 3
	// rather than deriving it from H(N, g).
	SRP6Multiplier *big.Int
)

func init() {
	if err := initSRP6Group(); err != nil {
		panic(err)
	}
}

func initSRP6Group() error {
	n := "894B645E89E1535BBDAD5B8B290650530801B18EBFBF5E8FAB3C82872A3E9BB7"
	nB, ok := new(big.Int).SetString(n, 16)
	if !ok {
		glog.Errorln("initSRP6Group(): invalid N")
		return fmt.Errorf("secrets: invalid N")
	}

	SRP6Modulus = nB
	SRP6Generator = big.NewInt(7)
	SRP6Multiplier = big.NewInt(3)
	return nil
}
