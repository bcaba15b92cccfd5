package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeCreateRoom      = 101
	MsgTypeJoinRoom        = 102
	MsgTypeLeaveRoom       = 103
	MsgTypeToggleReady     = 104
	MsgTypeStartGame       = 105
	MsgTypeRoomInfo        = 106
	MsgTypeUpdateGameState = 201
	MsgTypeGameOver        = 202
)

var msgNames = map[uint16]string{
	101: "createRoom",
	102: "joinRoom",
	103: "leaveRoom",
	104: "toggleReady",
	105: "startGame",
	106: "roomInfo",
	201: "updateGameState",
	202: "gameOver",
	301: "roomUpdated",
	302: "playerLeft",
	303: "gameStarted",
	304: "opponentUpdate",
	305: "gameFinished",
	306: "gameAborted",
	399: "error",
}

// send frames and sends one message to the server.
func send(c *websocket.Conn, msgID uint16, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				log.Printf("Read error: %v", err)
				return
			}
			if len(data) < 4 {
				continue
			}
			msgID := binary.BigEndian.Uint16(data[0:2])
			name := msgNames[msgID]
			if name == "" {
				name = fmt.Sprintf("msg-%d", msgID)
			}
			log.Printf("<- %s %s", name, string(data[4:]))
		}
	}()

	fmt.Println("Commands: create <name> | join <code> <name> | ready | start | over | leave | info <code> | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-interrupt:
			return
		case <-done:
			return
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "create":
			if len(fields) < 2 {
				fmt.Println("usage: create <name>")
				continue
			}
			err = send(c, MsgTypeCreateRoom, map[string]string{"username": fields[1]})
		case "join":
			if len(fields) < 3 {
				fmt.Println("usage: join <code> <name>")
				continue
			}
			err = send(c, MsgTypeJoinRoom, map[string]string{"room_code": fields[1], "username": fields[2]})
		case "ready":
			err = send(c, MsgTypeToggleReady, map[string]string{})
		case "start":
			err = send(c, MsgTypeStartGame, map[string]string{})
		case "over":
			err = send(c, MsgTypeGameOver, map[string]string{})
		case "leave":
			err = send(c, MsgTypeLeaveRoom, map[string]string{})
		case "info":
			if len(fields) < 2 {
				fmt.Println("usage: info <code>")
				continue
			}
			err = send(c, MsgTypeRoomInfo, map[string]string{"room_code": fields[1]})
		case "quit":
			return
		default:
			fmt.Println("unknown command")
			continue
		}
		if err != nil {
			log.Printf("Send failed: %v", err)
			return
		}
	}
}
