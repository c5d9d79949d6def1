// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	messagebus "github.com/vardius/message-bus"
)

type (
	Payload interface{}

	Message struct {
		Topic string
		Data  Payload
	}

	Info struct {
		Name string
	}

	MessagePipeInterface interface {
		Register(size int, plugins []Plugin) error
		DeRegister(ctx context.Context, plugins []string) error
		Process(ctx context.Context, messages ...*Message)
		Run(ctx context.Context)
		GetPlugins() []Plugin
		IsPluginRegistered(pluginName string) bool
	}

	Plugin interface {
		Init(ctx context.Context, messagePipe MessagePipeInterface) error
		Close(ctx context.Context) error
		Info() *Info
		Process(ctx context.Context, msg *Message)
		Subscriptions() []string
	}

	MessagePipe struct {
		bus            messagebus.MessageBus
		messageChannel chan *Message
		plugins        []Plugin
		pluginsMutex   sync.Mutex
	}
)

var errPipeNotRegistered = errors.New("no plugins registered on the message pipe")

func NewMessagePipe(size int) *MessagePipe {
	return &MessagePipe{
		messageChannel: make(chan *Message, size),
		pluginsMutex:   sync.Mutex{},
	}
}

func (p *MessagePipe) Register(size int, plugins []Plugin) error {
	p.pluginsMutex.Lock()
	defer p.pluginsMutex.Unlock()

	p.plugins = append(p.plugins, plugins...)
	p.bus = messagebus.New(size)

	pluginsRegistered := []string{}

	for _, plugin := range p.plugins {
		for _, subscription := range plugin.Subscriptions() {
			err := p.bus.Subscribe(subscription, plugin.Process)
			if err != nil {
				return err
			}
		}

		pluginsRegistered = append(pluginsRegistered, plugin.Info().Name)
	}

	slog.Info("Finished registering plugins", "plugins", pluginsRegistered)

	return nil
}

func (p *MessagePipe) DeRegister(ctx context.Context, pluginNames []string) error {
	p.pluginsMutex.Lock()
	defer p.pluginsMutex.Unlock()

	plugins := p.findPlugins(pluginNames)

	for _, plugin := range plugins {
		index := getIndex(plugin.Info().Name, p.plugins)

		if index != -1 {
			p.plugins = append(p.plugins[:index], p.plugins[index+1:]...)

			if err := plugin.Close(ctx); err != nil {
				slog.WarnContext(ctx, "Failed to close plugin", "plugin", plugin.Info().Name, "error", err)
			}

			for _, subscription := range plugin.Subscriptions() {
				err := p.bus.Unsubscribe(subscription, plugin.Process)
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func (p *MessagePipe) findPlugins(pluginNames []string) []Plugin {
	var plugins []Plugin

	for _, name := range pluginNames {
		for _, plugin := range p.plugins {
			if plugin.Info().Name == name {
				plugins = append(plugins, plugin)
			}
		}
	}

	return plugins
}

func getIndex(pluginName string, plugins []Plugin) int {
	for index, plugin := range plugins {
		if pluginName == plugin.Info().Name {
			return index
		}
	}

	return -1
}

// Process queues messages for delivery. It gives up when ctx is done.
func (p *MessagePipe) Process(ctx context.Context, messages ...*Message) {
	for _, m := range messages {
		select {
		case p.messageChannel <- m:
		case <-ctx.Done():
			return
		}
	}
}

// Run initialises every registered plugin and then delivers queued messages to their subscribers until
// ctx is done. All plugins are closed before Run returns.
func (p *MessagePipe) Run(ctx context.Context) {
	p.pluginsMutex.Lock()
	if p.bus == nil {
		p.pluginsMutex.Unlock()
		slog.ErrorContext(ctx, "Unable to run message pipe", "error", errPipeNotRegistered)

		return
	}
	p.pluginsMutex.Unlock()

	p.initPlugins(ctx)

	for {
		select {
		case <-ctx.Done():
			p.closePlugins(context.WithoutCancel(ctx))

			return
		case m := <-p.messageChannel:
			if m != nil {
				p.pluginsMutex.Lock()
				p.bus.Publish(m.Topic, ctx, m)
				p.pluginsMutex.Unlock()
			}
		}
	}
}

func (p *MessagePipe) GetPlugins() []Plugin {
	p.pluginsMutex.Lock()
	defer p.pluginsMutex.Unlock()

	return append([]Plugin(nil), p.plugins...)
}

func (p *MessagePipe) IsPluginRegistered(pluginName string) bool {
	for _, plugin := range p.GetPlugins() {
		if plugin.Info().Name == pluginName {
			return true
		}
	}

	return false
}

func (p *MessagePipe) initPlugins(ctx context.Context) {
	for _, plugin := range p.GetPlugins() {
		if err := plugin.Init(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Failed to initialise plugin", "plugin", plugin.Info().Name, "error", err)
		}
	}
}

func (p *MessagePipe) closePlugins(ctx context.Context) {
	for _, plugin := range p.GetPlugins() {
		if err := plugin.Close(ctx); err != nil {
			slog.WarnContext(ctx, "Failed to close plugin", "plugin", plugin.Info().Name, "error", err)
		}
	}
}
