package types

// 反馈电阻常量定义
const (
	NoResistor    ResistorIndex = -1 // 标记为无有效反馈电阻（超量程）
	DefaultSeries               = 0  // 写入校准值时使用的通道
)

// 默认参数常量定义
var (
	ResistorCount     = 3     // 反馈电阻组数量
	ReferenceR1       = 10e6  // 分压器第一级固定电阻 (Ω)
	ProbeVoltage      = 0.1   // 估算放大器增益的探测电压 (V)
	LadderFloor       = 0.005 // 电压阶梯最低电压 (V)
	LadderPoints      = 100   // 电压阶梯点数
	Headroom          = 0.8   // 最大电压余量，避免削波
	SampleCount       = 10    // 每批测量采样数
	SamplingMs        = 10.0  // 采样时间窗口 (ms)
	InterSampleMs     = 0.0   // 采样间隔 (ms)
	ProbeRetries      = 3     // 无有效采样时的重测次数
	MaxFitIterations  = 200   // 拟合最大迭代次数
	FitTolerance      = 1e-10 // 拟合收敛容差
	ReferenceSettleMs = 750   // 示波器每步操作前的稳定时间 (ms)
)
