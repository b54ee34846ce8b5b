// package bambu delivers toolpath programs to BambuLab printers over
// the LAN-only interface: programs are packed into a .3mf archive,
// uploaded over implicit FTPS, and started through the printer's MQTT
// endpoint. Both endpoints authenticate with the printer's LAN access
// code and present a self-signed certificate.
package bambu

import (
	"archive/zip"
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/jlaffaye/ftp"
)

const (
	ftpsPort = 990
	mqttPort = 8883
	lanUser  = "bblp"

	// gcodeEntry is the archive path the firmware executes.
	gcodeEntry = "Metadata/plate_1.gcode"

	dialTimeout    = 10 * time.Second
	commandTimeout = 15 * time.Second
)

// Client addresses one printer on the local network.
type Client struct {
	// Host is the printer's IP address or hostname.
	Host string
	// Serial is the printer serial number, used in MQTT topics.
	Serial string
	// AccessCode is the LAN access code shown on the printer.
	AccessCode string
}

func (c *Client) validate() error {
	switch {
	case c.Host == "":
		return errors.New("bambu: no printer host")
	case c.Serial == "":
		return errors.New("bambu: no printer serial")
	case c.AccessCode == "":
		return errors.New("bambu: no access code")
	}
	return nil
}

// Pack3MF wraps a G-code program in the minimal .3mf archive the
// printer accepts for LAN jobs.
func Pack3MF(program []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(gcodeEntry)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(program); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// tlsConfig accepts the printer's self-signed certificate. The LAN
// access code, not the certificate, authenticates the connection.
func (c *Client) tlsConfig() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true}
}

// Upload packs program and stores it on the printer as name.3mf,
// returning the stored file name.
func (c *Client) Upload(name string, program []byte) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	archive, err := Pack3MF(program)
	if err != nil {
		return "", err
	}
	conn, err := ftp.Dial(
		fmt.Sprintf("%s:%d", c.Host, ftpsPort),
		ftp.DialWithTLS(c.tlsConfig()),
		ftp.DialWithTimeout(dialTimeout),
	)
	if err != nil {
		return "", fmt.Errorf("bambu: connect %s: %w", c.Host, err)
	}
	defer conn.Quit()
	if err := conn.Login(lanUser, c.AccessCode); err != nil {
		return "", fmt.Errorf("bambu: login: %w", err)
	}
	file := name + ".3mf"
	if err := conn.Stor(file, bytes.NewReader(archive)); err != nil {
		return "", fmt.Errorf("bambu: upload %s: %w", file, err)
	}
	return file, nil
}

// printRequest is the LAN MQTT project_file command.
type printRequest struct {
	Print struct {
		SequenceID  string `json:"sequence_id"`
		Command     string `json:"command"`
		Param       string `json:"param"`
		URL         string `json:"url"`
		SubtaskName string `json:"subtask_name"`
		UseAMS      bool   `json:"use_ams"`
	} `json:"print"`
}

func startRequest(file string) ([]byte, error) {
	var req printRequest
	req.Print.SequenceID = "0"
	req.Print.Command = "project_file"
	req.Print.Param = gcodeEntry
	req.Print.URL = "ftp://" + file
	req.Print.SubtaskName = file
	return json.Marshal(req)
}

// Print starts a previously uploaded file.
func (c *Client) Print(file string) error {
	if err := c.validate(); err != nil {
		return err
	}
	payload, err := startRequest(file)
	if err != nil {
		return err
	}
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("ssl://%s:%d", c.Host, mqttPort)).
		SetClientID("scrawl-" + uuid.NewString()).
		SetUsername(lanUser).
		SetPassword(c.AccessCode).
		SetTLSConfig(c.tlsConfig()).
		SetConnectTimeout(dialTimeout)
	mc := mqtt.NewClient(opts)
	if tok := mc.Connect(); !tok.WaitTimeout(commandTimeout) || tok.Error() != nil {
		return fmt.Errorf("bambu: mqtt connect: %w", tokenErr(tok))
	}
	defer mc.Disconnect(250)
	topic := fmt.Sprintf("device/%s/request", c.Serial)
	if tok := mc.Publish(topic, 1, false, payload); !tok.WaitTimeout(commandTimeout) || tok.Error() != nil {
		return fmt.Errorf("bambu: start print: %w", tokenErr(tok))
	}
	return nil
}

func tokenErr(tok mqtt.Token) error {
	if err := tok.Error(); err != nil {
		return err
	}
	return errors.New("timeout")
}
