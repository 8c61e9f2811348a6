// cmd/actuator/main.go is the arm-actuator microservice: it owns the
// PCA9685 servo group driving the physical arm and exposes it over gRPC to
// the rover process. Adapted from cmd/servo/main.go's PCA9685 bring-up
// (including its no-op I2C bus fallback for dev machines with no bus
// attached), generalized from a fixed claw/camera pin map to the
// configured joint set described by an arm TOML config.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3/sysfs"

	"github.com/loidinhm31/rover-orchestra/internal/actuator"
	"github.com/loidinhm31/rover-orchestra/internal/arm"
	"github.com/loidinhm31/rover-orchestra/internal/grpcjson"
)

type nopBus struct{}

func (nopBus) Tx(addr uint16, w, r []byte) error   { return nil }
func (nopBus) Close() error                        { return nil }
func (nopBus) SetSpeed(hz physic.Frequency) error  { return nil }
func (nopBus) String() string                      { return "nopBus" }

func main() {
	addr := flag.String("addr", ":50051", "gRPC listen address")
	configPath := flag.String("arm-config", "", "path to arm TOML config (empty uses the default 6-DOF arm)")
	flag.Parse()

	armCfg := arm.DefaultConfig()
	if *configPath != "" {
		loaded, err := arm.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("actuator: arm.LoadConfig: %v", err)
		}
		armCfg = loaded
	}
	if err := armCfg.Validate(); err != nil {
		log.Fatalf("actuator: arm config invalid: %v", err)
	}

	sg, cleanup := setupBus()
	defer cleanup()

	joints := make(map[string]actuator.JointChannel, armCfg.DOF)
	for i, limit := range armCfg.JointLimits {
		name := fmt.Sprintf("arm_%d", i+1)
		joints[name] = actuator.JointChannel{Channel: i, MinAngle: limit.MinAngle, MaxAngle: limit.MaxAngle}
	}
	hw := actuator.NewHardware(sg, joints)

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("actuator: net.Listen: %v", err)
	}
	srv := grpc.NewServer(grpc.ForceServerCodec(grpcjson.Codec{}))
	actuator.RegisterArmActuatorServer(srv, hw)
	log.Printf("actuator: arm actuator gRPC listening on %s (%d joints)", *addr, len(joints))
	if err := srv.Serve(lis); err != nil {
		log.Fatalf("actuator: serve: %v", err)
	}
}

// setupBus mirrors cmd/servo/main.go's SetupServers: open the real
// /dev/i2c-1 bus, falling back to a no-op bus when none is attached (dev
// machines, CI).
func setupBus() (*pca9685.ServoGroup, func()) {
	var bus i2c.BusCloser
	realBus, err := sysfs.NewI2C(1)
	if err != nil {
		if os.IsNotExist(err) || strings.Contains(err.Error(), "no such file") {
			log.Println("actuator: /dev/i2c-1 not found, falling back to no-op I2C bus")
			bus = nopBus{}
		} else {
			log.Fatalf("actuator: sysfs.NewI2C: %v", err)
		}
	} else {
		bus = realBus
	}

	cleanup := func() { _ = bus.Close() }

	_ = bus.Tx(0x00, []byte{0x06}, nil)
	time.Sleep(10 * time.Millisecond)

	pca, err := pca9685.NewI2C(bus, pca9685.I2CAddr)
	if err != nil {
		log.Fatalf("actuator: pca9685.NewI2C: %v", err)
	}
	if err := pca.SetPwmFreq(50 * physic.Hertz); err != nil {
		log.Fatalf("actuator: SetPwmFreq: %v", err)
	}
	if err := pca.SetAllPwm(0, 0); err != nil {
		log.Fatalf("actuator: SetAllPwm: %v", err)
	}

	return pca9685.NewServoGroup(pca, 50, 650, 0, 180), cleanup
}
